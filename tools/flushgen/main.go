// flushgen is a tiny, dependency-free HTTP load generator for a running
// flush node's control plane. It reuses HTTP connections (keep-alive) and
// supports concurrency so demo scripts finish quickly without relying on
// external tools.
//
// Modes:
//   - plan:  repeatedly POST /plan, a read-only dry run of the policy
//   - flush: repeatedly POST /flush, which runs a real worker cycle
//
// Usage examples:
//
//	flushgen -base=http://127.0.0.1:8080 -mode=plan -n=5000 -c=16
//	flushgen -base=http://127.0.0.1:8080 -mode=flush -n=200 -c=4
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type modeType string

const (
	modePlan  modeType = "plan"
	modeFlush modeType = "flush"
)

func main() {
	var (
		base       = flag.String("base", "http://127.0.0.1:8080", "Base URL including scheme and host, e.g. http://127.0.0.1:8080")
		modeS      = flag.String("mode", string(modePlan), "Mode: plan|flush")
		N          = flag.Int("n", 2000, "Total requests to send")
		conc       = flag.Int("c", 8, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", 20*time.Second, "Overall timeout for the loadgen run")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "Max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "Max idle connections per host")
	)
	flag.Parse()

	m := modeType(strings.ToLower(*modeS))
	if m != modePlan && m != modeFlush {
		fmt.Fprintf(os.Stderr, "unknown -mode=%s (want plan|flush)\n", *modeS)
		os.Exit(2)
	}
	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	fullPath := strings.TrimRight(*base, "/") + "/" + string(m)

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var errs int64

	worker := func(count int) {
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, fullPath, nil)
			resp, err := client.Do(req)
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode >= 400 {
					atomic.AddInt64(&errs, 1)
				}
			} else {
				atomic.AddInt64(&errs, 1)
				time.Sleep(200 * time.Microsecond)
			}
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(n int) {
			defer wg.Done()
			worker(n)
		}(count)
	}
	wg.Wait()
	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*N) / elapsed.Seconds()
	fmt.Printf("flushgen: mode=%s N=%d c=%d go=%d errs=%d Duration=%s Throughput=%.0f req/s\n",
		m, *N, *conc, runtime.GOMAXPROCS(0), errs, elapsed.Truncate(time.Millisecond), ops)
}
