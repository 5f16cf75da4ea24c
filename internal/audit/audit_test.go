package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLogger_RecordAndAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)

	evt := &parser.AuthEvent{Date: "Mar  3", Time: "10:15:02", User: "admin", SourceIP: "203.0.113.5", Port: "51515", Status: parser.StatusFailed}
	require.NoError(t, l.Record(context.Background(), evt))
	require.NoError(t, l.LogAlert(&types.Alert{ID: "evt_1", Risk: types.RiskHigh, IP: "203.0.113.5"}))

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "event", entries[0].Kind)
	assert.Equal(t, *evt, *entries[0].Event)
	assert.Nil(t, entries[0].Alert)
	assert.Equal(t, "alert", entries[1].Kind)
	assert.Equal(t, "evt_1", entries[1].Alert.ID)
	assert.False(t, entries[1].LoggedAt.IsZero())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLogger_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path)
	evt := &parser.AuthEvent{User: "root", SourceIP: "10.0.0.1", Port: "22"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Record(context.Background(), evt))
		}()
	}
	wg.Wait()

	assert.Len(t, readEntries(t, path), 20)
}

func TestLogger_OpenError(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "missing", "audit.log"))
	assert.Error(t, l.Record(context.Background(), &parser.AuthEvent{}))
}
