package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func receive(t *testing.T, ch <-chan LogLine) LogLine {
	t.Helper()
	select {
	case line, ok := <-ch:
		require.True(t, ok, "channel closed")
		return line
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for line")
	}
	return LogLine{}
}

func TestFileTailer_Start_MissingFile(t *testing.T) {
	tailer := NewFileTailer(filepath.Join(t.TempDir(), "auth.log"), 50*time.Millisecond, zap.NewNop().Sugar())

	_, err := tailer.Start(context.Background())
	assert.Error(t, err)
}

func TestFileTailer_Start_FollowsNewLinesOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("old line 1\nold line 2\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewFileTailer(path, 50*time.Millisecond, zap.NewNop().Sugar())
	lines, err := tailer.Start(ctx)
	require.NoError(t, err)

	// Let the tailer seek to the end before appending.
	time.Sleep(300 * time.Millisecond)
	appendLine(t, path, "new line")

	got := receive(t, lines)
	assert.Equal(t, "new line", got.Content)
	assert.Equal(t, path, got.Source)

	cancel()
	select {
	case _, ok := <-lines:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestFileTailer_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	tailer := NewFileTailer(path, 50*time.Millisecond, zap.NewNop().Sugar())
	lines, err := tailer.Start(context.Background())
	require.NoError(t, err)

	_ = tailer.Stop()

	select {
	case _, ok := <-lines:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel not closed after Stop")
	}
}

func TestFileTailer_ReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0644))

	tailer := NewFileTailer(path, 0, zap.NewNop().Sugar())
	lines, err := tailer.ReadAll(context.Background())
	require.NoError(t, err)

	var got []string
	for line := range lines {
		got = append(got, line.Content)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
