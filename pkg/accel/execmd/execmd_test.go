package execmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), CommandTimeout, "sh", "-c", "echo hello")
	require.NoError(t, res.Err)
	assert.Equal(t, 0, res.Code)
	assert.Equal(t, "hello", res.Stdout)
}

func TestRun_NonZeroExit(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), CommandTimeout, "sh", "-c", "echo oops >&2; exit 3")
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Code)
	assert.Equal(t, "oops", res.Stderr)
}

func TestRun_MissingBinary(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), CommandTimeout, "definitely-not-a-real-tool-12345")
	require.Error(t, res.Err)
	assert.Equal(t, 1, res.Code)
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), 50*time.Millisecond, "sh", "-c", "sleep 5")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "timed out")
}

func TestTail(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Tail(""))
	assert.Equal(t, []string{"one"}, Tail("one"))
	assert.Equal(t,
		[]string{"3", "4", "5", "6", "7"},
		Tail("1\n2\n3\n4\n5\n6\n7"))
	assert.Equal(t, []string{"a", "b"}, Tail("a\n\n \nb\n"))
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cpupower frequency-set -g performance",
		CommandString("cpupower", "frequency-set", "-g", "performance"))
}
