// Command memcrsd runs the memcrs-go binary-protocol cache daemon: it
// loads the operator configuration, builds a storage backend of the
// configured engine, and serves the Memcached binary protocol alongside a
// loopback control plane for recording and playback.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agilira/memcrs-go/internal/config"
	"github.com/agilira/memcrs-go/internal/logging"
	"github.com/agilira/memcrs-go/pkg/cache"
	"github.com/agilira/memcrs-go/pkg/controlplane"
	"github.com/agilira/memcrs-go/pkg/metrics"
	"github.com/agilira/memcrs-go/pkg/playback"
	"github.com/agilira/memcrs-go/pkg/recorder"
	"github.com/agilira/memcrs-go/pkg/server"
	"github.com/agilira/memcrs-go/pkg/store"
	"github.com/agilira/memcrs-go/pkg/store/backend"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (INI format)")
	port := flag.Int("p", 0, "TCP port to listen on (overrides config)")
	listenAddr := flag.String("l", "", "Interface to listen on (overrides config)")
	socketPath := flag.String("s", "", "Unix socket path (overrides -p and -l)")
	engine := flag.String("engine", "", "Storage backend: lockstriped, rwmutex, lockfree, inline, ordered (overrides config)")
	controlAddr := flag.String("control-addr", "127.0.0.1:11280", "Loopback address for the control-plane HTTP server")
	recordDir := flag.String("record-dir", ".", "Directory recordings are written to and replayed from")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "memcrsd: failed to load config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{}
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memcrsd: invalid config: %v\n", err)
		os.Exit(1)
	}

	if *engine != "" {
		resolved.Engine = *engine
	}
	if *port != 0 {
		resolved.Port = *port
	}
	if *listenAddr != "" {
		resolved.ListenAddress = *listenAddr
	}

	log := logging.New(logging.Options{Level: resolved.LogLevel, Pretty: resolved.LogPretty}, "memcrsd")

	if resolved.Threads > 0 {
		runtime.GOMAXPROCS(resolved.Threads)
	}

	capacity := resolved.Capacity
	if resolved.MemoryLimit > 0 {
		// memory_limit is advisory: size the initial capacity assuming
		// roughly 1KiB per record, never shrinking an explicit hint.
		if derived := int(resolved.MemoryLimit / 1024); derived > capacity {
			capacity = derived
		}
	}

	be := buildBackend(resolved.Engine, capacity)
	peripherals := store.NewPeripherals(store.SystemTimer{})
	memStore := store.New(be, peripherals)
	memcStore := cache.New(memStore)
	handler := server.NewHandler(memcStore)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer, memcStore.Len)

	masterRecorder := recorder.NewMaster()

	srvCfg := server.Config{
		ListenAddress:  resolved.ListenAddress,
		Port:           resolved.Port,
		BacklogLimit:   resolved.BacklogLimit,
		RxTimeout:      time.Duration(resolved.RxTimeoutSecs) * time.Second,
		ItemMemLimit:   uint32(resolved.ItemMemoryLimit),
		MaxConnections: 1024,
	}
	srv := server.New(srvCfg, handler, masterRecorder, log).WithObserver(collector.Observe)

	addr := *socketPath
	if addr == "" && len(resolved.ListenAddress) > 0 && resolved.ListenAddress[0] == '/' {
		addr = resolved.ListenAddress
	}
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", resolved.ListenAddress, resolved.Port)
	}

	go func() {
		if err := srv.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	player := playback.NewPlayer(*recordDir, 16)
	plane := &controlplane.Plane{
		Recorder:       masterRecorder,
		Player:         player,
		Status:         playback.NewStatus(),
		Gatherer:       prometheus.DefaultGatherer,
		HandlerFactory: func() *server.Handler { return server.NewHandler(memcStore) },
		Log:            log.With().Str("component", "controlplane").Logger(),
	}
	go func() {
		log.Info().Str("addr", *controlAddr).Msg("control plane listening")
		if err := http.ListenAndServe(*controlAddr, plane.Mux()); err != nil {
			log.Error().Err(err).Msg("control plane failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	log.Info().Str("addr", addr).Str("engine", resolved.Engine).Str("runtime", resolved.RuntimeType).Msg("memcrsd started")
	<-quit
	log.Info().Msg("shutting down")
}

func buildBackend(engine string, capacity int) store.Backend {
	switch engine {
	case "rwmutex":
		return backend.NewRWMutex(capacity)
	case "lockfree":
		return backend.NewLockFree(capacity)
	case "inline":
		return backend.NewInline(capacity)
	case "ordered":
		return backend.NewOrdered(capacity)
	default:
		return backend.NewLockStriped(capacity, 16)
	}
}

