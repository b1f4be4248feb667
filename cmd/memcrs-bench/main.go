// Command memcrs-bench drives a simple get/set workload against a running
// memcrsd instance (or any real Memcached server) and, for comparison,
// against a Redis instance, reporting throughput for each so the two
// engines can be benchmarked side by side.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
)

func main() {
	memcAddr := flag.String("memcached", "127.0.0.1:11211", "memcrsd/memcached address to benchmark")
	redisAddr := flag.String("redis", "", "redis address to benchmark for comparison (empty skips it)")
	concurrency := flag.Int("c", 50, "concurrent client goroutines")
	duration := flag.Duration("duration", 5*time.Second, "how long to run each benchmark")
	valueSize := flag.Int("value-size", 100, "value payload size in bytes")
	keyspace := flag.Int("keyspace", 10000, "number of distinct keys cycled through")
	flag.Parse()

	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte('a' + i%26)
	}

	fmt.Printf("memcrs-bench: memcached=%s redis=%s concurrency=%d duration=%s\n",
		*memcAddr, *redisAddr, *concurrency, *duration)

	memcOps := runMemcached(*memcAddr, *concurrency, *duration, *keyspace, value)
	fmt.Printf("memcached: %d ops, %.0f ops/sec\n", memcOps, float64(memcOps)/duration.Seconds())

	if *redisAddr != "" {
		redisOps := runRedis(*redisAddr, *concurrency, *duration, *keyspace, value)
		fmt.Printf("redis:     %d ops, %.0f ops/sec\n", redisOps, float64(redisOps)/duration.Seconds())
	}
}

func runMemcached(addr string, concurrency int, duration time.Duration, keyspace int, value []byte) uint64 {
	client := memcache.New(addr)
	client.Timeout = 2 * time.Second

	var ops atomic.Uint64
	deadline := time.Now().Add(duration)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				key := fmt.Sprintf("bench:%d", rnd.Intn(keyspace))
				if rnd.Intn(10) == 0 {
					_ = client.Set(&memcache.Item{Key: key, Value: value})
				} else {
					_, _ = client.Get(key)
				}
				ops.Add(1)
			}
		}(int64(w))
	}
	wg.Wait()
	return ops.Load()
}

func runRedis(addr string, concurrency int, duration time.Duration, keyspace int, value []byte) uint64 {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()

	var ops atomic.Uint64
	deadline := time.Now().Add(duration)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				key := fmt.Sprintf("bench:%d", rnd.Intn(keyspace))
				if rnd.Intn(10) == 0 {
					client.Set(ctx, key, value, 0)
				} else {
					client.Get(ctx, key)
				}
				ops.Add(1)
			}
		}(int64(w))
	}
	wg.Wait()
	return ops.Load()
}
