package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/reelauth"
	"github.com/MrEthical07/reelauth/internal/stores/memory"
	otelexport "github.com/MrEthical07/reelauth/metrics/export/otel"
)

const loadPassword = "load-test-password"

type userState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to seed and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (validate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := dialRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	store := memory.NewUsers()
	engine, err := buildEngine(client, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	states, err := seed(ctx, engine, store, *users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	results := []result{
		validatePhase(engine, states, *ops, *concurrency).run(),
		refreshPhase(ctx, engine, states, *ops, *concurrency).run(),
	}
	fmt.Println("---- results ----")
	for _, r := range results {
		fmt.Println(r)
	}

	if err := printEngineMetrics(ctx, engine); err != nil {
		fmt.Fprintf(os.Stderr, "metrics: %v\n", err)
	}
}

// printEngineMetrics reads the engine counters once through the
// OpenTelemetry exporter and prints the non-zero ones.
func printEngineMetrics(ctx context.Context, engine *reelauth.Engine) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	exp, err := otelexport.NewExporter(provider.Meter("reelauth-loadtest"), engine)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	fmt.Println("---- engine ----")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Value > 0 {
					fmt.Printf("%s=%d\n", m.Name, dp.Value)
				}
			}
		}
	}
	return nil
}

// dialRedis connects to addr, then REDIS_ADDR, and falls back to an
// in-process miniredis.
func dialRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func buildEngine(client redis.UniversalClient, store reelauth.UserStore) (*reelauth.Engine, error) {
	cfg := reelauth.DefaultConfig()
	cfg.JWT.CurrentKID = "load"
	cfg.JWT.Keys = map[string][]byte{"load": []byte("reelauth-loadtest-signing-key-000")}
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Tokens.HashCost = bcrypt.MinCost
	cfg.RateLimit.IP.Points = 1 << 30
	cfg.Links = reelauth.LinkConfig{ClientURL: "http://localhost:5173", ServerURL: "http://localhost:8080"}

	return reelauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
}

// seed inserts verified accounts directly and logs each one in once.
func seed(ctx context.Context, engine *reelauth.Engine, store reelauth.UserStore, n int) ([]*userState, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(loadPassword), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	states := make([]*userState, n)
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("load-%d@reelauth.test", i)
		if _, err := store.CreateUser(ctx, &reelauth.User{
			Email:         email,
			PasswordHash:  string(hash),
			EmailVerified: true,
			DisplayName:   fmt.Sprintf("load-%d", i),
		}); err != nil {
			return nil, err
		}
		res, err := engine.Login(reelauth.WithClientIP(ctx, "127.0.0.1"), email, loadPassword)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", email, err)
		}
		states[i] = &userState{access: res.AccessToken, refresh: res.RefreshToken}
	}
	return states, nil
}

// phase drives ops calls of op across concurrency workers. op receives a
// per-worker random source and reports whether the call failed.
type phase struct {
	name        string
	ops         int
	concurrency int
	op          func(r *rand.Rand) error
}

type result struct {
	name     string
	elapsed  time.Duration
	samples  []time.Duration
	failures int64
}

func (p phase) run() result {
	var (
		next     atomic.Int64
		failures atomic.Int64
		wg       sync.WaitGroup
	)
	perWorker := make([][]time.Duration, p.concurrency)

	start := time.Now()
	for w := range p.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)))
			for next.Add(1) <= int64(p.ops) {
				t0 := time.Now()
				if err := p.op(r); err != nil {
					failures.Add(1)
				}
				perWorker[w] = append(perWorker[w], time.Since(t0))
			}
		}()
	}
	wg.Wait()

	res := result{name: p.name, elapsed: time.Since(start), failures: failures.Load()}
	for _, s := range perWorker {
		res.samples = append(res.samples, s...)
	}
	slices.Sort(res.samples)
	return res
}

func validatePhase(engine *reelauth.Engine, states []*userState, ops, concurrency int) phase {
	return phase{name: "validate", ops: ops, concurrency: concurrency, op: func(r *rand.Rand) error {
		s := states[r.IntN(len(states))]
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.ValidateAccess(token)
		return err
	}}
}

// refreshPhase rotates random users' refresh tokens. Each user's chain is
// serialised so every presented token is the live one.
func refreshPhase(ctx context.Context, engine *reelauth.Engine, states []*userState, ops, concurrency int) phase {
	return phase{name: "refresh", ops: ops, concurrency: concurrency, op: func(r *rand.Rand) error {
		s := states[r.IntN(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = res.AccessToken, res.RefreshToken
		return nil
	}}
}

// quantile expects sorted samples.
func quantile(samples []time.Duration, q float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	return samples[int(float64(len(samples)-1)*q)]
}

func (r result) String() string {
	rate := 0.0
	if secs := r.elapsed.Seconds(); secs > 0 {
		rate = float64(len(r.samples)) / secs
	}
	return fmt.Sprintf("%-8s ops=%d failures=%d elapsed=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		r.name, len(r.samples), r.failures, r.elapsed.Round(time.Millisecond), rate,
		quantile(r.samples, 0.50).Round(time.Microsecond),
		quantile(r.samples, 0.95).Round(time.Microsecond),
		quantile(r.samples, 0.99).Round(time.Microsecond))
}
