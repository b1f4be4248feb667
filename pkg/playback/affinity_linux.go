//go:build linux

package playback

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore advisorily pins the calling goroutine's underlying OS thread to
// core. It locks the goroutine to its OS thread first, since affinity is a
// thread, not goroutine, property; failure at any step is silently ignored,
// matching the playback design's "pinning is advisory, failure is
// non-fatal" rule.
func pinToCore(core int) {
	if core < 0 {
		return
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	_ = unix.SchedSetaffinity(0, &set)
}
