package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

// Entry is one line of the audit trail.
type Entry struct {
	Kind     string            `json:"kind"` // event, alert
	LoggedAt time.Time         `json:"logged_at"`
	Event    *parser.AuthEvent `json:"event,omitempty"`
	Alert    *types.Alert      `json:"alert,omitempty"`
}

// Logger handles appending entries to the audit log
type Logger struct {
	mu       sync.Mutex
	filePath string
	now      func() time.Time
}

// NewLogger creates a new audit logger
func NewLogger(filePath string) *Logger {
	return &Logger{
		filePath: filePath,
		now:      time.Now,
	}
}

// Record appends a matched event. It implements the monitor sink interface.
func (l *Logger) Record(_ context.Context, evt *parser.AuthEvent) error {
	return l.write(Entry{Kind: "event", Event: evt})
}

// LogAlert appends an alert.
func (l *Logger) LogAlert(alert *types.Alert) error {
	return l.write(Entry{Kind: "alert", Alert: alert})
}

// write appends one JSON object in a thread-safe manner
func (l *Logger) write(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.LoggedAt = l.now().UTC()

	f, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	return nil
}
