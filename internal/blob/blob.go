package blob

import "context"

// Well-known keys. The registry and scheduler agree on these with whatever
// adapter is wired in.
const (
	KeyServers           = "savedServers"
	KeyAutoCheckEnabled  = "autoCheckEnabled"
	KeyAutoCheckInterval = "autoCheckInterval"
)

// Store is an opaque key-value blob store. Load reports found=false (not an
// error) when the key has never been written.
type Store interface {
	Load(ctx context.Context, key string) (value []byte, found bool, err error)
	Save(ctx context.Context, key string, value []byte) error
}
