package core

import "time"

// EventType enumerates view-state events.
type EventType string

const (
	EventLeaderboardChanged EventType = "leaderboard_changed"
	EventProfileChanged     EventType = "profile_changed"
	EventProfileUpdated     EventType = "profile_updated"
	EventLoggedOut          EventType = "logged_out"
	EventCommandFailed      EventType = "command_failed"
)

// EventTypes lists every event type a view publishes.
func EventTypes() []EventType {
	return []EventType{EventLeaderboardChanged, EventProfileChanged, EventProfileUpdated, EventLoggedOut, EventCommandFailed}
}

// Event represents an immutable change notification derived from a view-state snapshot.
// TimeFrame is the selected timeframe, DataTimeFrame the one Entries were
// fetched for; they differ while a switch is loading. Version is the snapshot
// version of the publishing view, so a consumer can drop a snapshot event
// older than one it has already applied.
type Event struct {
	Type          EventType          `json:"type"`
	Time          time.Time          `json:"time"`
	UserID        UserID             `json:"user_id,omitempty"`
	TimeFrame     TimeFrame          `json:"timeframe,omitempty"`
	DataTimeFrame TimeFrame          `json:"data_timeframe,omitempty"`
	Version       uint64             `json:"version,omitempty"`
	Entries       []LeaderboardEntry `json:"entries,omitempty"`
	Profile       *User              `json:"profile,omitempty"`
	Loading       bool               `json:"loading"`
	Generation    uint64             `json:"generation,omitempty"`
	Command       string             `json:"command,omitempty"`
	Error         string             `json:"error,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// NewLeaderboardChanged builds a snapshot event whose entries belong to tf.
// Use WithDataTimeFrame when the selection runs ahead of the data.
func NewLeaderboardChanged(tf TimeFrame, entries []LeaderboardEntry, loading bool, gen uint64, errMsg string) Event {
	return Event{Type: EventLeaderboardChanged, Time: time.Now().UTC(), TimeFrame: tf, DataTimeFrame: tf, Entries: CloneEntries(entries), Loading: loading, Generation: gen, Error: errMsg}
}

// WithDataTimeFrame returns a copy of e with the timeframe of its entries set.
func (e Event) WithDataTimeFrame(tf TimeFrame) Event {
	e.DataTimeFrame = tf
	return e
}

// WithVersion returns a copy of e stamped with the publishing view's snapshot version.
func (e Event) WithVersion(v uint64) Event {
	e.Version = v
	return e
}

// IsSnapshot reports whether e carries a full view snapshot and thus a
// meaningful Version.
func (e Event) IsSnapshot() bool {
	return e.Type == EventLeaderboardChanged || e.Type == EventProfileChanged
}

func NewProfileChanged(u *User, errMsg string) Event {
	ev := Event{Type: EventProfileChanged, Time: time.Now().UTC(), Error: errMsg}
	if u != nil {
		cp := u.Clone()
		ev.Profile = &cp
		ev.UserID = u.ID
	}
	return ev
}

// NewProfileUpdated reports a profile edit accepted by the auth service.
func NewProfileUpdated(u *User) Event {
	ev := Event{Type: EventProfileUpdated, Time: time.Now().UTC()}
	if u != nil {
		cp := u.Clone()
		ev.Profile = &cp
		ev.UserID = u.ID
	}
	return ev
}

func NewLoggedOut(user UserID) Event {
	return Event{Type: EventLoggedOut, Time: time.Now().UTC(), UserID: user}
}

func NewCommandFailed(command string, err error) Event {
	ev := Event{Type: EventCommandFailed, Time: time.Now().UTC(), Command: command}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
