// Package config loads the daemon's operator-facing INI configuration
// file and resolves it into concrete server settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents the application configuration. It maps to the INI
// config file; zero-value fields fall back to Defaults' values.
type Config struct {
	Server struct {
		ListenAddress string // e.g. "0.0.0.0" or "/tmp/memcrs.sock"
		Port          string // e.g. "11211"; ignored for unix-socket listeners
		BacklogLimit  string // e.g. "1024"
		RxTimeoutSecs string // e.g. "60"
		Threads       string // e.g. "4" or "0" for GOMAXPROCS
	}
	Storage struct {
		Engine          string // "lockstriped", "rwmutex", "lockfree", "inline", "ordered"
		Capacity        string // initial slot/shard hint
		MemoryLimit     string // e.g. "64MB" - advisory; only sizes the initial capacity, nothing is capped
		ItemMemoryLimit string // e.g. "1MB" - max request body (extras+key+value) size
	}
	Runtime struct {
		// Type is "current-thread", "multi-thread", or
		// "thread-per-connection". The goroutine-per-connection server
		// schedules the same way under all three names; the value is
		// validated, recorded, and reported in the startup log.
		Type string
	}
	Log struct {
		Level  string
		Pretty string // "true"/"false"
	}
}

// Resolved is the fully-defaulted, type-checked form of Config consumed
// by the rest of the daemon.
type Resolved struct {
	ListenAddress   string
	Port            int
	BacklogLimit    int
	RxTimeoutSecs   int
	Threads         int
	Engine          string
	Capacity        int
	MemoryLimit     int64
	ItemMemoryLimit int64
	RuntimeType     string
	LogLevel        string
	LogPretty       bool
}

// Defaults returns the daemon's built-in configuration, used for any
// field left blank in the loaded file.
func Defaults() Resolved {
	return Resolved{
		ListenAddress:   "0.0.0.0",
		Port:            11211,
		BacklogLimit:    1024,
		RxTimeoutSecs:   60,
		Threads:         0,
		Engine:          "lockstriped",
		Capacity:        4096,
		MemoryLimit:     0, // 0 = unlimited
		ItemMemoryLimit: 1024 * 1024,
		RuntimeType:     "thread-per-connection",
		LogLevel:        "info",
		LogPretty:       false,
	}
}

// Load reads an INI configuration file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseINI(string(data))
}

func parseINI(data string) (*Config, error) {
	cfg := &Config{}

	lines := strings.Split(data, "\n")
	currentSection := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.ToLower(line[1 : len(line)-1])
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(parts[0]))
		value := strings.TrimSpace(parts[1])
		// Remove inline comments
		if idx := strings.Index(value, " #"); idx != -1 {
			value = strings.TrimSpace(value[:idx])
		}

		switch currentSection {
		case "server":
			switch key {
			case "listen_address":
				cfg.Server.ListenAddress = value
			case "port":
				cfg.Server.Port = value
			case "backlog_limit":
				cfg.Server.BacklogLimit = value
			case "rx_timeout_secs":
				cfg.Server.RxTimeoutSecs = value
			case "threads":
				cfg.Server.Threads = value
			}
		case "storage":
			switch key {
			case "engine":
				cfg.Storage.Engine = value
			case "capacity":
				cfg.Storage.Capacity = value
			case "memory_limit":
				cfg.Storage.MemoryLimit = value
			case "item_memory_limit":
				cfg.Storage.ItemMemoryLimit = value
			}
		case "runtime":
			switch key {
			case "type":
				cfg.Runtime.Type = value
			}
		case "log":
			switch key {
			case "level":
				cfg.Log.Level = value
			case "pretty":
				cfg.Log.Pretty = value
			}
		}
	}

	return cfg, nil
}

// Resolve merges c over Defaults(), parsing and validating every field.
func (c *Config) Resolve() (Resolved, error) {
	r := Defaults()

	if c.Server.ListenAddress != "" {
		r.ListenAddress = c.Server.ListenAddress
	}
	if c.Server.Port != "" {
		n, err := strconv.Atoi(c.Server.Port)
		if err != nil {
			return r, fmt.Errorf("invalid port: %w", err)
		}
		r.Port = n
	}
	if c.Server.BacklogLimit != "" {
		n, err := strconv.Atoi(c.Server.BacklogLimit)
		if err != nil {
			return r, fmt.Errorf("invalid backlog_limit: %w", err)
		}
		r.BacklogLimit = n
	}
	if c.Server.RxTimeoutSecs != "" {
		n, err := strconv.Atoi(c.Server.RxTimeoutSecs)
		if err != nil {
			return r, fmt.Errorf("invalid rx_timeout_secs: %w", err)
		}
		r.RxTimeoutSecs = n
	}
	if c.Server.Threads != "" {
		n, err := strconv.Atoi(c.Server.Threads)
		if err != nil {
			return r, fmt.Errorf("invalid threads: %w", err)
		}
		r.Threads = n
	}

	if c.Storage.Engine != "" {
		switch c.Storage.Engine {
		case "lockstriped", "rwmutex", "lockfree", "inline", "ordered":
			r.Engine = c.Storage.Engine
		default:
			return r, fmt.Errorf("invalid engine: %s (valid: lockstriped, rwmutex, lockfree, inline, ordered)", c.Storage.Engine)
		}
	}
	if c.Storage.Capacity != "" {
		n, err := strconv.Atoi(c.Storage.Capacity)
		if err != nil {
			return r, fmt.Errorf("invalid capacity: %w", err)
		}
		r.Capacity = n
	}
	if c.Storage.MemoryLimit != "" {
		v, err := parseBytes64(c.Storage.MemoryLimit)
		if err != nil {
			return r, fmt.Errorf("invalid memory_limit: %w", err)
		}
		r.MemoryLimit = v
	}
	if c.Storage.ItemMemoryLimit != "" {
		v, err := parseBytes64(c.Storage.ItemMemoryLimit)
		if err != nil {
			return r, fmt.Errorf("invalid item_memory_limit: %w", err)
		}
		r.ItemMemoryLimit = v
	}

	if c.Runtime.Type != "" {
		switch c.Runtime.Type {
		case "current-thread", "multi-thread", "thread-per-connection":
			r.RuntimeType = c.Runtime.Type
		default:
			return r, fmt.Errorf("invalid runtime type: %s (valid: current-thread, multi-thread, thread-per-connection)", c.Runtime.Type)
		}
	}

	if c.Log.Level != "" {
		r.LogLevel = c.Log.Level
	}
	if c.Log.Pretty != "" {
		b, err := strconv.ParseBool(c.Log.Pretty)
		if err != nil {
			return r, fmt.Errorf("invalid log pretty: %w", err)
		}
		r.LogPretty = b
	}

	return r, nil
}

func parseBytes64(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}

	return val * multiplier, nil
}
