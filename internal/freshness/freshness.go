package freshness

import "time"

// DefaultTTL is how long synced data is trusted before going back to the remote.
const DefaultTTL = 30 * time.Minute

type Policy struct {
	TTL time.Duration
}

func New(ttl time.Duration) Policy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Policy{TTL: ttl}
}

// IsFresh reports whether updatedAt is younger than the TTL at now. A zero time is never fresh.
func (p Policy) IsFresh(updatedAt, now time.Time) bool {
	if updatedAt.IsZero() {
		return false
	}
	return now.Sub(updatedAt) < p.ttl()
}

// AnyFresh judges a whole batch by its most recently updated member only.
// Older members are not checked individually.
func (p Policy) AnyFresh(updatedAts []time.Time, now time.Time) bool {
	var newest time.Time
	for _, t := range updatedAts {
		if t.After(newest) {
			newest = t
		}
	}
	return p.IsFresh(newest, now)
}

func (p Policy) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultTTL
	}
	return p.TTL
}
