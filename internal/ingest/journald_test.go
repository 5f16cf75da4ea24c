package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJournalEntry_SyslogLine(t *testing.T) {
	ts := time.Date(2026, time.March, 3, 10, 15, 2, 0, time.UTC)
	entry := JournalEntry{
		Timestamp:        "1772532902000000",
		Message:          "Failed password for root from 203.0.113.5 port 51515 ssh2",
		SyslogIdentifier: "sshd",
		PID:              "1234",
		UID:              "0",
		Hostname:         "myhost",
	}
	require.Equal(t, ts.UnixMicro(), int64(1772532902000000))

	line, err := entry.SyslogLine(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Mar  3 10:15:02 myhost sshd[1234]: Failed password for root from 203.0.113.5 port 51515 ssh2", line)
}

func TestJournalEntry_SyslogLine_BadTimestamp(t *testing.T) {
	_, err := JournalEntry{Timestamp: "yesterday"}.SyslogLine(time.UTC)
	assert.Error(t, err)
}

func TestJournalReader_Decode(t *testing.T) {
	j := NewJournalReader(zap.NewNop().Sugar())
	j.loc = time.UTC

	line, ok := j.decode([]byte(`{"__REALTIME_TIMESTAMP":"1772532902000000","MESSAGE":"Connection closed by 203.0.113.9 port 22","SYSLOG_IDENTIFIER":"sshd","_PID":"7","_UID":"0","_HOSTNAME":"h"}`))
	require.True(t, ok)
	assert.Equal(t, JournalSource, line.Source)
	assert.Equal(t, "Mar  3 10:15:02 h sshd[7]: Connection closed by 203.0.113.9 port 22", line.Content)

	// logger -t sshd from an unprivileged user
	_, ok = j.decode([]byte(`{"__REALTIME_TIMESTAMP":"1772532902000000","MESSAGE":"x","SYSLOG_IDENTIFIER":"sshd","_PID":"7","_UID":"1000"}`))
	assert.False(t, ok)

	_, ok = j.decode([]byte(`{"MESSAGE":[1,2,3]}`))
	assert.False(t, ok)
}

func TestJournalReader_SessionEntries(t *testing.T) {
	j := NewJournalReader(zap.NewNop().Sugar())
	j.loc = time.UTC

	assert.Contains(t, j.args, "sshd-session")

	line, ok := j.decode([]byte(`{"__REALTIME_TIMESTAMP":"1772532902000000","MESSAGE":"Failed password for root from 203.0.113.5 port 51515 ssh2","SYSLOG_IDENTIFIER":"sshd-session","_PID":"9","_UID":"0","_HOSTNAME":"h"}`))
	require.True(t, ok)
	assert.Equal(t, "Mar  3 10:15:02 h sshd[9]: Failed password for root from 203.0.113.5 port 51515 ssh2", line.Content)

	_, ok = j.decode([]byte(`{"__REALTIME_TIMESTAMP":"1772532902000000","MESSAGE":"x","SYSLOG_IDENTIFIER":"sshd-session","_PID":"9","_UID":"1000"}`))
	assert.False(t, ok)
}
