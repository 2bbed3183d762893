//go:build linux

package utils

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithInput(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	stdout := bytes.Buffer{}
	cmd := NewCommand(ctx, args...)
	cmd.SetStdin(bytes.NewReader(stdin))
	cmd.SetStdout(&stdout)
	err := cmd.Run()
	return stdout.Bytes(), err
}

func TestRunWithInput(t *testing.T) {
	out, err := runWithInput(context.Background(), []byte("hello"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRunFailureCarriesStderr(t *testing.T) {
	_, err := runWithInput(context.Background(), nil, "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)

	var detailed DetailedError
	require.True(t, errors.As(err, &detailed))
	assert.Contains(t, detailed.Details(), "oops")
	assert.Contains(t, detailed.Error(), "Command failed")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runWithInput(ctx, nil, "sleep", "10")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
