package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JournalSource is the LogLine.Source of journald lines.
const JournalSource = "journald"

// OpenSSH 9.8 moved per-connection messages from sshd to sshd-session.
const (
	sshdIdentifier    = "sshd"
	sessionIdentifier = "sshd-session"
)

// JournalEntry represents the JSON structure from journalctl
type JournalEntry struct {
	Timestamp        string `json:"__REALTIME_TIMESTAMP"` // microseconds since epoch
	Message          string `json:"MESSAGE"`
	SyslogIdentifier string `json:"SYSLOG_IDENTIFIER"`
	PID              string `json:"_PID"`
	UID              string `json:"_UID"`
	Comm             string `json:"_COMM"`
	Hostname         string `json:"_HOSTNAME"`
}

// Time returns the realtime timestamp of the entry.
func (e JournalEntry) Time() (time.Time, error) {
	us, err := strconv.ParseInt(e.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad journal timestamp %q: %w", e.Timestamp, err)
	}
	return time.UnixMicro(us), nil
}

// SyslogLine renders the entry the way rsyslog writes it to auth.log, so
// the sshd parser applies unchanged. sshd-session entries are written
// under the sshd tag.
func (e JournalEntry) SyslogLine(loc *time.Location) (string, error) {
	ts, err := e.Time()
	if err != nil {
		return "", err
	}
	host := e.Hostname
	if host == "" {
		host = "localhost"
	}
	ident := e.SyslogIdentifier
	if ident == sessionIdentifier {
		ident = sshdIdentifier
	}
	return fmt.Sprintf("%s %s %s[%s]: %s", ts.In(loc).Format(time.Stamp), host, ident, e.PID, e.Message), nil
}

// trusted rejects entries claiming to be sshd that were not written by
// root, e.g. "logger -t sshd" from an unprivileged user.
func (e JournalEntry) trusted() bool {
	switch e.SyslogIdentifier {
	case sshdIdentifier, sessionIdentifier:
		return e.UID == "0"
	}
	return true
}

// JournalReader follows the systemd journal via CLI
type JournalReader struct {
	command string
	args    []string
	loc     *time.Location
	log     *zap.SugaredLogger

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewJournalReader(log *zap.SugaredLogger) *JournalReader {
	return &JournalReader{
		command: "journalctl",
		// -n 0: start at the tail, same as the file tailer
		args: []string{"-f", "-o", "json", "-n", "0", "-t", sshdIdentifier, "-t", sessionIdentifier},
		loc:  time.Local,
		log:  log,
	}
}

func (j *JournalReader) Start(ctx context.Context) (<-chan LogLine, error) {
	cmd := exec.CommandContext(ctx, j.command, j.args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to pipe journalctl: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("journalctl not found (not a systemd system?): %w", err)
		}
		return nil, fmt.Errorf("failed to start journalctl: %w", err)
	}

	j.mu.Lock()
	j.cmd = cmd
	j.mu.Unlock()

	out := make(chan LogLine, 256)

	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line, ok := j.decode(scanner.Bytes())
			if !ok {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			j.log.Errorw("journalctl exited", "error", err)
		}
	}()

	return out, nil
}

func (j *JournalReader) decode(raw []byte) (LogLine, bool) {
	var entry JournalEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// binary MESSAGE fields are encoded as arrays; skip them
		return LogLine{}, false
	}
	if !entry.trusted() {
		j.log.Warnw("dropped spoofed sshd journal entry", "uid", entry.UID, "pid", entry.PID)
		return LogLine{}, false
	}
	content, err := entry.SyslogLine(j.loc)
	if err != nil {
		j.log.Debugw("skipping journal entry", "error", err)
		return LogLine{}, false
	}
	return LogLine{Source: JournalSource, Timestamp: time.Now(), Content: content}, true
}

func (j *JournalReader) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cmd != nil && j.cmd.Process != nil {
		return j.cmd.Process.Kill()
	}
	return nil
}
