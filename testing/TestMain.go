// Package testing switches the process into test mode when imported for its
// side effects.
package testing

import (
	"os"
	stdtesting "testing"
)

// testEnv holds the variables every test binary needs. Values already present
// in the environment win.
var testEnv = map[string]string{
	"RBAC_TEST_MODE": "1",
	"JWT_SECRET":     "test-secret-test-secret-test-secret!",
}

func init() {
	for key, value := range testEnv {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
