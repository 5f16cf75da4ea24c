package feature

import (
	"sync"
	"time"
)

// FeatureVector represents the current state of an entity (IP)
type FeatureVector struct {
	IP            string
	FailedLogins  int
	DistinctUsers map[string]bool
	FirstSeen     time.Time
	LastSeen      time.Time
}

// Accumulator tracks failed logins per source IP. Entries idle for longer
// than the window start over.
type Accumulator struct {
	mu       sync.Mutex
	features map[string]*FeatureVector
	window   time.Duration
	now      func() time.Time
}

// NewAccumulator creates a new feature accumulator
func NewAccumulator(window time.Duration) *Accumulator {
	return &Accumulator{
		features: make(map[string]*FeatureVector),
		window:   window,
		now:      time.Now,
	}
}

const (
	MaxTrackedIPs = 5000
	MaxUsersPerIP = 50
)

// AddFailure records a failed login attempt and returns a snapshot of the
// IP's vector.
func (a *Accumulator) AddFailure(ip, user string) FeatureVector {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	feat, exists := a.features[ip]
	if exists && a.window > 0 && now.Sub(feat.LastSeen) > a.window {
		delete(a.features, ip)
		exists = false
	}

	if !exists {
		if len(a.features) >= MaxTrackedIPs {
			a.pruneLocked(now)
		}
		if len(a.features) >= MaxTrackedIPs {
			a.evictLowPriority()
		}
		feat = &FeatureVector{
			IP:            ip,
			DistinctUsers: make(map[string]bool),
			FirstSeen:     now,
		}
		a.features[ip] = feat
	}

	feat.FailedLogins++
	if len(feat.DistinctUsers) < MaxUsersPerIP {
		feat.DistinctUsers[user] = true
	}
	feat.LastSeen = now

	return feat.snapshot()
}

// GetFeatures returns a copy of the vector for ip.
func (a *Accumulator) GetFeatures(ip string) (FeatureVector, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if feat, ok := a.features[ip]; ok {
		return feat.snapshot(), true
	}
	return FeatureVector{}, false
}

// Len returns the number of tracked IPs.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.features)
}

// Prune drops entries idle for longer than the window.
func (a *Accumulator) Prune() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(a.now())
}

// SetWindow changes the idle window used from now on.
func (a *Accumulator) SetWindow(window time.Duration) {
	a.mu.Lock()
	a.window = window
	a.mu.Unlock()
}

func (a *Accumulator) pruneLocked(now time.Time) {
	if a.window <= 0 {
		return
	}
	for ip, feat := range a.features {
		if now.Sub(feat.LastSeen) > a.window {
			delete(a.features, ip)
		}
	}
}

// evictLowPriority removes one entry: prioritizing low failure counts and old timestamps
// Caller must hold lock.
func (a *Accumulator) evictLowPriority() {
	var bestIP string
	var best *FeatureVector

	for ip, feat := range a.features {
		if best == nil ||
			feat.FailedLogins < best.FailedLogins ||
			feat.FailedLogins == best.FailedLogins && feat.LastSeen.Before(best.LastSeen) {
			bestIP, best = ip, feat
		}
	}

	if best != nil {
		delete(a.features, bestIP)
	}
}

func (f *FeatureVector) snapshot() FeatureVector {
	users := make(map[string]bool, len(f.DistinctUsers))
	for u := range f.DistinctUsers {
		users[u] = true
	}
	cp := *f
	cp.DistinctUsers = users
	return cp
}
