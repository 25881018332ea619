// Command torctl is a minimal demonstration of the public runtime API:
// it starts a tor instance under a work directory, prints a couple of
// GETINFO values once Start has connected and authenticated (it does not
// wait for bootstrap), and stops cleanly after printing, on SIGINT/SIGTERM,
// or at a fixed demo timeout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torctl/torctl/control"
	"github.com/torctl/torctl/event"
	"github.com/torctl/torctl/logging"
	"github.com/torctl/torctl/runtime"
)

func main() {
	workDir := flag.String("work-dir", "", "tor DataDirectory (defaults to an XDG data-home subdirectory)")
	cacheDir := flag.String("cache-dir", "", "cache directory for geoip files etc (defaults to work-dir)")
	torBinary := flag.String("tor-binary", "", "path or name of the tor executable (default \"tor\")")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()

	var env runtime.Environment
	if *workDir == "" {
		defEnv, err := runtime.DefaultEnvironment("torctl")
		if err != nil {
			fmt.Fprintf(os.Stderr, "torctl: -work-dir not given and XDG base directories unavailable: %v\n", err)
			os.Exit(2)
		}
		env = defEnv
	} else {
		if *cacheDir == "" {
			*cacheDir = *workDir
		}
		env = runtime.Environment{WorkDir: *workDir, CacheDir: *cacheDir}
	}
	env.TorBinary = *torBinary

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	opts := []runtime.Option{runtime.WithLogger(logging.NewStd())}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, runtime.WithMetrics(runtime.NewSink(reg)))
		go serveMetrics(*metricsAddr, reg)
	}
	rt := runtime.New(env, opts...)

	rt.Events().Subscribe(&event.Observer{
		Event: event.RuntimeError,
		OnEvent: func(data event.Data) {
			log.Printf("torctl: runtime error: %v", data)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log.Printf("torctl: starting tor in %s", env.WorkDir)
	if err := rt.Action().Start(ctx).Wait(ctx); err != nil {
		log.Fatalf("torctl: start failed: %v", err)
	}
	log.Printf("torctl: started, state=%s", rt.State())

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		printInfo(ctx, rt)
	}()

	select {
	case <-doneCh:
	case sig := <-sigCh:
		log.Printf("torctl: exiting on signal: %v", sig)
	case <-ctx.Done():
		log.Printf("torctl: demo timeout reached")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := rt.Action().Stop(stopCtx).Wait(stopCtx); err != nil {
		log.Printf("torctl: stop error: %v", err)
	}
	if err := rt.Close(stopCtx); err != nil {
		log.Printf("torctl: close error: %v", err)
	}
}

// serveMetrics blocks serving reg's Prometheus metrics on addr until the
// listener fails; the caller runs it on its own goroutine.
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("torctl: metrics server exited: %v", err)
	}
}

func printInfo(ctx context.Context, rt *runtime.Runtime) {
	if rt.Connection() == nil {
		return
	}
	res, err := rt.Do(ctx, &control.GetInfoCmd{Keys: []string{"version", "network-liveness"}})
	if err != nil {
		log.Printf("torctl: GETINFO failed: %v", err)
		return
	}
	values, _ := res.(map[string]any)
	for _, k := range []string{"version", "network-liveness"} {
		log.Printf("torctl: %s = %v", k, values[k])
	}
}
