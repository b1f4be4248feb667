//go:build !linux

package playback

// pinToCore is a no-op outside Linux; CPU pinning is advisory everywhere.
func pinToCore(core int) {}
