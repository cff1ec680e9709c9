package domain

import "time"

type ServerID string

// Status is the tri-state online flag of a monitored server.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// MaxHistory is the retention cap per server. Oldest entries are evicted
// first when an append pushes the history past this length.
const MaxHistory = 100

type Server struct {
	ID             ServerID      `json:"id"`
	Domain         string        `json:"domain"`
	ExpectedStatus int           `json:"expectedStatusCode"`
	Status         Status        `json:"isOnline"`
	LastChecked    *time.Time    `json:"lastChecked"`
	History        []CheckResult `json:"statusHistory"`
}

// AppendResult returns a copy of s with r appended to the tail of its
// history and the head evicted down to MaxHistory entries. s itself is
// never mutated; the returned server owns a fresh history slice.
func (s Server) AppendResult(r CheckResult) Server {
	out := s.Clone()
	out.History = append(out.History, r)
	if n := len(out.History); n > MaxHistory {
		out.History = out.History[n-MaxHistory:]
	}
	return out
}

// Clone returns a deep copy safe to hand out across goroutines.
func (s Server) Clone() Server {
	c := s
	if s.LastChecked != nil {
		t := *s.LastChecked
		c.LastChecked = &t
	}
	if s.History != nil {
		c.History = append(make([]CheckResult, 0, len(s.History)), s.History...)
	}
	return c
}
