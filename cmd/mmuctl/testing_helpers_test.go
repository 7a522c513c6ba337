package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)

	return buf.String(), fnErr
}

// resetFlags restores the global flags to their defaults now and once the
// test ends.
func resetFlags(t *testing.T) {
	t.Helper()
	reset := func() {
		platformName, configPath, devicePath = "unified-64k", "", ""
		verbose, quiet, jsonOut = false, false, false
		strict, dumpEnd = false, false
		rootCmd.SetArgs(nil)
	}
	reset()
	t.Cleanup(reset)
}
