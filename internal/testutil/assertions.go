package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertNodeFinished checks the log output for the completion line of the
// node with address id.
func AssertNodeFinished(t *testing.T, result *HarnessResult, id string) {
	t.Helper()
	needle := fmt.Sprintf("node=%s ", id)
	for _, line := range strings.Split(result.LogOutput, "\n") {
		if strings.Contains(line, "Finished node") && strings.Contains(line, needle) {
			return
		}
	}
	require.Failf(t, "node did not finish", "no completion logged for %s", id)
}

// ReadFile returns the content of path, failing the test if it is missing.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
