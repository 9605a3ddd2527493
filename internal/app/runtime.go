package app

import (
	"os"
	"sync"
)

// TestModeEnv is set to "1" by the test helper package.
const TestModeEnv = "RBAC_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process runs under go test. Test mode skips
// request logging and keeps main from binding a listener.
func InTestMode() bool {
	return testMode()
}
