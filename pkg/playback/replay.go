package playback

import (
	"time"

	"github.com/agilira/memcrs-go/pkg/protocol"
	"github.com/agilira/memcrs-go/pkg/server"
)

type recordedRequest = protocol.BinaryRequest

func toRecorded(reqs []protocol.BinaryRequest) []recordedRequest {
	return reqs
}

// replayConnection drives one connection's captured requests through a
// fresh handler, timing each request individually. Latency timing uses
// time.Now()/time.Since rather than the cached clock used for TTL checks:
// playback needs wall-clock precision, the cached clock trades precision
// for cheapness on the hot get/set path, which is the wrong tradeoff here.
func replayConnection(reqs []recordedRequest, h *server.Handler) connResult {
	latencies := make([]uint64, 0, len(reqs))
	start := time.Now()
	for _, req := range reqs {
		reqStart := time.Now()
		h.Handle(req)
		latencies = append(latencies, uint64(time.Since(reqStart).Nanoseconds()))
	}
	return connResult{
		latenciesNs: latencies,
		ops:         uint64(len(reqs)),
		elapsed:     time.Since(start),
	}
}
