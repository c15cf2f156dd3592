package analytics

import (
	"sort"
	"sync"
	"time"

	"rankview/core"
)

// Hook receives view-state events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// LatencyStats summarizes how long the leaderboard stayed in its loading state.
type LatencyStats struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total_ns"`
	Max   time.Duration `json:"max_ns"`
	Last  time.Duration `json:"last_ns"`
}

// Mean returns the average loading window, or zero before the first sample.
func (l LatencyStats) Mean() time.Duration {
	if l.Count == 0 {
		return 0
	}
	return l.Total / time.Duration(l.Count)
}

// Stats is a point-in-time copy of the collected metrics.
type Stats struct {
	Since             time.Time                `json:"since"`
	Events            map[core.EventType]int64 `json:"events"`
	FailuresByCommand map[string]int64         `json:"failures_by_command"`
	LoadsByTimeFrame  map[core.TimeFrame]int64 `json:"loads_by_timeframe"`
	ProfileUpdates    int64                    `json:"profile_updates"`
	Logouts           int64                    `json:"logouts"`
	FetchLatency      LatencyStats             `json:"fetch_latency"`
	DailyActiveUsers  map[string]int           `json:"daily_active_users"`
	TopFailedCommands []CommandCount           `json:"top_failed_commands,omitempty"`
}

// CommandCount pairs a command name with a failure count.
type CommandCount struct {
	Command string `json:"command"`
	Count   int64  `json:"count"`
}

// Metrics counts view-state events: commands that failed, completed leaderboard
// loads per timeframe, profile changes, logouts and the duration of each
// leaderboard loading window.
type Metrics struct {
	mu  sync.RWMutex
	now func() time.Time

	since             time.Time
	events            map[core.EventType]int64
	failuresByCommand map[string]int64
	loadsByTimeFrame  map[core.TimeFrame]int64
	profileUpdates    int64
	logouts           int64
	latency           LatencyStats
	loadingSince      time.Time
	dailyActiveUsers  map[string]map[core.UserID]struct{}
}

func NewMetrics() *Metrics {
	m := &Metrics{now: time.Now}
	m.reset()
	return m
}

func (m *Metrics) reset() {
	m.since = m.now().UTC()
	m.events = make(map[core.EventType]int64)
	m.failuresByCommand = make(map[string]int64)
	m.loadsByTimeFrame = make(map[core.TimeFrame]int64)
	m.profileUpdates = 0
	m.logouts = 0
	m.latency = LatencyStats{}
	m.loadingSince = time.Time{}
	m.dailyActiveUsers = make(map[string]map[core.UserID]struct{})
}

func (m *Metrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[e.Type]++
	if e.UserID != "" {
		day := dayKey(e.Time)
		if m.dailyActiveUsers[day] == nil {
			m.dailyActiveUsers[day] = make(map[core.UserID]struct{})
		}
		m.dailyActiveUsers[day][e.UserID] = struct{}{}
	}

	switch e.Type {
	case core.EventCommandFailed:
		m.failuresByCommand[e.Command]++
	case core.EventLeaderboardChanged:
		m.trackLoading(e)
	case core.EventProfileUpdated:
		m.profileUpdates++
	case core.EventLoggedOut:
		m.logouts++
	}
}

// trackLoading measures from the first loading snapshot to the first settled
// one. Overlapping fetches extend the same window.
func (m *Metrics) trackLoading(e core.Event) {
	if e.Loading {
		if m.loadingSince.IsZero() {
			m.loadingSince = e.Time
		}
		return
	}
	if m.loadingSince.IsZero() {
		return
	}
	d := e.Time.Sub(m.loadingSince)
	m.loadingSince = time.Time{}
	if d < 0 {
		d = 0
	}
	m.latency.Count++
	m.latency.Total += d
	m.latency.Last = d
	if d > m.latency.Max {
		m.latency.Max = d
	}
	if e.Error == "" {
		tf := e.DataTimeFrame
		if tf == "" {
			tf = e.TimeFrame
		}
		m.loadsByTimeFrame[tf]++
	}
}

// GetDailyActiveUsers returns the count of daily active users for a specific day
func (m *Metrics) GetDailyActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

// GetFailures returns how often a command failed.
func (m *Metrics) GetFailures(command string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failuresByCommand[command]
}

// Snapshot copies the current counters. topN limits TopFailedCommands.
func (m *Metrics) Snapshot(topN int) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Since:             m.since,
		Events:            make(map[core.EventType]int64, len(m.events)),
		FailuresByCommand: make(map[string]int64, len(m.failuresByCommand)),
		LoadsByTimeFrame:  make(map[core.TimeFrame]int64, len(m.loadsByTimeFrame)),
		ProfileUpdates:    m.profileUpdates,
		Logouts:           m.logouts,
		FetchLatency:      m.latency,
		DailyActiveUsers:  make(map[string]int, len(m.dailyActiveUsers)),
	}
	for k, v := range m.events {
		s.Events[k] = v
	}
	for k, v := range m.failuresByCommand {
		s.FailuresByCommand[k] = v
		s.TopFailedCommands = append(s.TopFailedCommands, CommandCount{Command: k, Count: v})
	}
	for k, v := range m.loadsByTimeFrame {
		s.LoadsByTimeFrame[k] = v
	}
	for day, users := range m.dailyActiveUsers {
		s.DailyActiveUsers[day] = len(users)
	}

	sort.Slice(s.TopFailedCommands, func(i, j int) bool {
		a, b := s.TopFailedCommands[i], s.TopFailedCommands[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Command < b.Command
	})
	if topN >= 0 && len(s.TopFailedCommands) > topN {
		s.TopFailedCommands = s.TopFailedCommands[:topN]
	}
	return s
}

// Reset clears all counters and restarts the collection window.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func dayKey(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}
