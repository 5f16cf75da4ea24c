package detect

import (
	"fmt"
	"sync"
	"time"

	"sshwatch/internal/feature"
	"sshwatch/internal/parser"
	"sshwatch/internal/types"
)

// Engine raises brute-force alerts from FAILED auth events.
type Engine struct {
	mu        sync.RWMutex
	threshold int
	features  *feature.Accumulator
	now       func() time.Time
}

// NewEngine creates a detection engine. An alert fires each time an IP's
// failure count within window reaches a multiple of threshold.
func NewEngine(threshold int, window time.Duration) *Engine {
	return &Engine{
		threshold: threshold,
		features:  feature.NewAccumulator(window),
		now:       time.Now,
	}
}

// Configure updates threshold and window without dropping accumulated state.
func (e *Engine) Configure(threshold int, window time.Duration) {
	e.mu.Lock()
	e.threshold = threshold
	e.mu.Unlock()
	e.features.SetWindow(window)
}

// Threshold returns the current alert threshold.
func (e *Engine) Threshold() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// ProcessEvent applies rules to a new event
func (e *Engine) ProcessEvent(evt *parser.AuthEvent) *types.Alert {
	if evt == nil || evt.Status != parser.StatusFailed {
		return nil
	}

	threshold := e.Threshold()
	if threshold <= 0 {
		return nil
	}

	feat := e.features.AddFailure(evt.SourceIP, evt.User)
	if feat.FailedLogins%threshold != 0 {
		return nil
	}
	return e.bruteForceAlert(feat)
}

func (e *Engine) bruteForceAlert(feat feature.FeatureVector) *types.Alert {
	now := e.now()
	risk := types.RiskMedium
	if feat.FailedLogins >= 2*e.Threshold() || len(feat.DistinctUsers) > 1 {
		risk = types.RiskHigh
	}
	return &types.Alert{
		ID:            fmt.Sprintf("evt_%d", now.UnixNano()),
		Timestamp:     now,
		Source:        "ssh_auth",
		Risk:          risk,
		Summary:       "SSH Brute Force Detected",
		Explanation:   explain(feat),
		IP:            feat.IP,
		FailedLogins:  feat.FailedLogins,
		DistinctUsers: len(feat.DistinctUsers),
	}
}

// Prune drops per-IP state idle for longer than the window.
func (e *Engine) Prune() {
	e.features.Prune()
}

func explain(feat feature.FeatureVector) string {
	users := len(feat.DistinctUsers)
	noun := "usernames"
	if users == 1 {
		noun = "username"
	}
	return fmt.Sprintf("IP %s failed %d SSH logins using %d distinct %s since %s.",
		feat.IP, feat.FailedLogins, users, noun, feat.FirstSeen.Format(time.Stamp))
}
