package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunReportsUsageErrors(t *testing.T) {
	cases := map[string][]string{
		`unknown command "bogus"`: {"bogus"},
		"unknown flag: --nope":    {"serve", "--nope"},
	}
	for want, args := range cases {
		var stdout, stderr bytes.Buffer
		require.Equal(t, 1, run(args, &stdout, &stderr), args)
		require.Contains(t, stderr.String(), want)
		require.Contains(t, stderr.String(), "rbacadmin: ")
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "serve")
	require.Empty(t, stderr.String())
}
