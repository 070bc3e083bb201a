package analytics

import (
	"time"

	"trafficlens/internal/events"
)

// Session is a derived group of page views sharing a session id within the queried range.
type Session struct {
	ID        string    `json:"id"`
	Views     int       `json:"views"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Bounced reports whether the session has exactly one view in range.
func (s Session) Bounced() bool {
	return s.Views == 1
}

// ReconstructSessions partitions views by session id, in order of first appearance.
// Views without a session id are ignored.
func ReconstructSessions(views []events.PageView) []Session {
	sessions := make([]Session, 0)
	index := make(map[string]int)

	for _, view := range views {
		id, ok := view.Session()
		if !ok {
			continue
		}

		i, seen := index[id]
		if !seen {
			index[id] = len(sessions)
			sessions = append(sessions, Session{
				ID:        id,
				Views:     1,
				FirstSeen: view.Timestamp,
				LastSeen:  view.Timestamp,
			})
			continue
		}

		s := &sessions[i]
		s.Views++
		if view.Timestamp.Before(s.FirstSeen) {
			s.FirstSeen = view.Timestamp
		}
		if view.Timestamp.After(s.LastSeen) {
			s.LastSeen = view.Timestamp
		}
	}

	return sessions
}

// BounceRate is the share of bounced sessions in percent, 0 for no sessions.
func BounceRate(sessions []Session) float64 {
	if len(sessions) == 0 {
		return 0
	}

	bounced := 0
	for _, s := range sessions {
		if s.Bounced() {
			bounced++
		}
	}
	return float64(bounced) / float64(len(sessions)) * 100
}
