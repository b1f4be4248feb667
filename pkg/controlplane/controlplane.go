// Package controlplane implements the loopback HTTP surface that toggles
// request recording and launches playback, alongside status, metrics and
// pprof endpoints on the same mux.
package controlplane

import (
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/agilira/memcrs-go/pkg/playback"
	"github.com/agilira/memcrs-go/pkg/recorder"
	"github.com/agilira/memcrs-go/pkg/server"
)

// Plane wires the control-plane HTTP handlers to the recorder, the player
// and a playback Status. HandlerFactory builds a fresh, MemcStore-sharing
// Handler for each playback connection goroutine.
type Plane struct {
	Recorder       *recorder.MasterRecorder
	Player         *playback.Player
	Status         *playback.Status
	Gatherer       prometheus.Gatherer
	HandlerFactory func() *server.Handler
	Log            zerolog.Logger

	maxConnID atomic.Uint64
}

// Mux builds an *http.ServeMux serving the record/playback endpoints plus
// /playback-status, /metrics and /debug/pprof/*.
func (p *Plane) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/start-record", p.handleStartRecord)
	mux.HandleFunc("/stop-record", p.handleStopRecord)
	mux.HandleFunc("/play-record", p.handlePlayRecord)
	mux.HandleFunc("/playback-status", p.handlePlaybackStatus)
	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// handleStartRecord enables recording. The request body carries the new
// max connection id as decimal text; it is recorded purely for reporting
// back on /stop-record, since the recorder itself has no notion of a
// connection-id ceiling.
func (p *Plane) handleStartRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	maxID, err := strconv.ParseUint(string(body), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.maxConnID.Store(maxID)
	p.Recorder.Start()
	p.Log.Info().Uint64("max_conn_id", maxID).Msg("recording started")
	w.WriteHeader(http.StatusOK)
}

// handleStopRecord dumps every captured recording as {name}-*.bin under the
// player's directory and reports "{connections_dumped}/{max_conn_id}".
func (p *Plane) handleStopRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	dumped, err := p.Recorder.Dump(p.Player.Dir(), name)
	if err != nil {
		p.Log.Error().Err(err).Msg("dump failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%d/%d", dumped, p.maxConnID.Load())
}

// handlePlayRecord launches a playback of {name}-*.bin in a background
// goroutine, reporting true/false depending on whether it was accepted
// (another playback may already be in flight).
func (p *Plane) handlePlayRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if !p.Status.Start(name) {
		fmt.Fprint(w, "false")
		return
	}
	go func() {
		report, err := p.Player.Play(name, p.HandlerFactory)
		if err != nil {
			p.Log.Error().Err(err).Str("name", name).Msg("playback failed")
		}
		p.Status.Stop(report)
	}()
	fmt.Fprint(w, "true")
}

// handlePlaybackStatus reports the current or most recent playback as JSON.
func (p *Plane) handlePlaybackStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, p.Status.Snapshot())
}
