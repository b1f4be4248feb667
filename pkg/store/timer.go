package store

import "github.com/agilira/go-timecache"

// Timer is the monotonic wall-clock source injected everywhere TTL checks
// and timestamping happen.
type Timer interface {
	// Now returns the current time as seconds since the Unix epoch.
	Now() uint32
}

// SystemTimer reads the process-wide cached clock maintained by
// go-timecache instead of calling time.Now() on every lookup.
type SystemTimer struct{}

func (SystemTimer) Now() uint32 {
	return uint32(timecache.CachedTimeNano() / 1e9)
}
