// Command otpengine-loadtest exercises the challenge lifecycle under
// concurrency: it issues a challenge per identity, hammers each one with
// wrong submissions from many workers, and verifies that every identity
// ends up locked exactly once.
//
// With no -redis-addr it runs against an embedded miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bytemarket/otpengine"
)

type identityState struct {
	email string
	code  string
}

func main() {
	var (
		identities  = flag.Int("identities", 5000, "number of identities to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		attempts    = flag.Int("attempts", 6, "wrong submissions per identity")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *attempts <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and attempts must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	capture := &codeCapture{codes: map[string]string{}}

	engine, err := otpengine.New().
		WithRedis(client).
		WithNotifier(capture).
		WithUserProvider(noUsers{}).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]identityState, *identities)
	fmt.Printf("seeding %d challenges...\n", *identities)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("load-%d@example.com", i)
		res, err := engine.RequestChallenge(ctx, email, otpengine.PurposeRegistration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		if res.Blocked {
			fmt.Fprintf(os.Stderr, "seed request blocked: %s\n", res.Reason)
			os.Exit(1)
		}
		states[i] = identityState{email: email, code: capture.get(email)}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	stats, locked := runAttackPhase(ctx, engine, states, *attempts, *concurrency)

	fmt.Println("---- results ----")
	printStats("submit", stats)
	fmt.Printf("locked identities: %d / %d\n", locked, *identities)

	snapshot := engine.MetricsSnapshot()
	lockouts := snapshot.Counters[otpengine.MetricVerifyLockout]
	fmt.Printf("lockout transitions: %d\n", lockouts)
	if lockouts != uint64(*identities) {
		fmt.Fprintf(os.Stderr, "FAIL: expected exactly %d lockout transitions\n", *identities)
		os.Exit(1)
	}
	fmt.Println("OK: one lockout transition per identity")
}

func runAttackPhase(ctx context.Context, engine *otpengine.Engine, states []identityState, attempts, concurrency int) (phaseStats, int64) {
	type job struct {
		idx int
	}

	total := len(states) * attempts
	jobs := make(chan job, concurrency)

	var (
		wg        sync.WaitGroup
		failures  int64
		lockedIDs sync.Map
		latencies = make([]time.Duration, 0, total)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for j := range jobs {
				state := states[j.idx]
				wrong := fmt.Sprintf("%04d", r.Intn(10000))
				if wrong == state.code {
					wrong = nextWrong(wrong)
				}

				t0 := time.Now()
				res, err := engine.SubmitChallenge(ctx, state.email, otpengine.PurposeRegistration, wrong)
				d := time.Since(t0)

				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if res.Status == otpengine.SubmitLocked {
					lockedIDs.Store(state.email, struct{}{})
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}

	for a := 0; a < attempts; a++ {
		for i := range states {
			jobs <- job{idx: i}
		}
	}
	close(jobs)
	wg.Wait()

	var locked int64
	lockedIDs.Range(func(any, any) bool {
		locked++
		return true
	})

	return computeStats(time.Since(start), latencies, failures), locked
}

func nextWrong(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		last = '0'
	} else {
		last++
	}
	return code[:len(code)-1] + string(last)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// codeCapture records dispatched codes instead of sending them anywhere.
type codeCapture struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeCapture) Send(_ context.Context, msg otpengine.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[msg.To] = msg.Code
	return nil
}

func (c *codeCapture) get(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

// noUsers satisfies the provider requirement; the raw challenge API never
// touches user persistence.
type noUsers struct{}

func (noUsers) FindByEmail(context.Context, string) (otpengine.UserRecord, error) {
	return otpengine.UserRecord{}, otpengine.ErrUserNotFound
}

func (noUsers) CreateUser(context.Context, otpengine.UserRecord) error { return nil }

func (noUsers) UpdatePassword(context.Context, string, string) error { return nil }
