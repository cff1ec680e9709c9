package probe

import (
	"context"

	"serverwatch/internal/domain"
)

// Outcome is what one probe observed. StatusCode is 0 when no response was
// obtained. Reason is a human-readable diagnostic for display; it is never a
// control-flow error.
type Outcome struct {
	Online     bool
	StatusCode int
	Reason     string
}

// Checker performs a single reachability probe against one server. Failures
// are data: implementations never return an error for an unreachable server.
type Checker interface {
	Check(ctx context.Context, srv domain.Server) Outcome
}

// Gate is consulted before any network attempt. When it reports false the
// checker short-circuits to offline without dialing.
type Gate interface {
	Available() bool
}
