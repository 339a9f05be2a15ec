package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pior/respkv"
	"github.com/pior/respkv/internal/chaos"
	"github.com/pior/respkv/internal/dashboard"
	"github.com/pior/respkv/internal/workload"
	"github.com/pior/respkv/promexporter"
	"github.com/sony/gobreaker/v2"
	"github.com/spf13/cobra"
)

var (
	benchWorkload    string
	benchConcurrency int
	benchDuration    time.Duration
	benchHotKeys     int
	benchMetricsAddr string
	benchTUI         bool
	benchScenario    string
	benchToxiproxy   string
	benchProxyListen string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Generate load with one session per worker",
	Long: "bench runs a workload with one session per worker and reports client statistics.\n" +
		"Available workloads: " + strings.Join(workload.Names(), ", ") + "\n" +
		"Available scenarios: " + strings.Join(chaos.List(), ", "),
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	flags := benchCmd.Flags()
	flags.StringVar(&benchWorkload, "workload", "mixed", "workload pattern")
	flags.IntVar(&benchConcurrency, "concurrency", 10, "number of workers")
	flags.DurationVar(&benchDuration, "duration", 10*time.Second, "how long to run (0 runs until interrupted)")
	flags.IntVar(&benchHotKeys, "hot-keys", 10, "number of hot keys")
	flags.StringVar(&benchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	flags.BoolVar(&benchTUI, "tui", false, "show a live dashboard")
	flags.StringVar(&benchScenario, "scenario", "", "chaos scenario to run through toxiproxy")
	flags.StringVar(&benchToxiproxy, "toxiproxy-api", "http://127.0.0.1:8474", "toxiproxy API address")
	flags.StringVar(&benchProxyListen, "proxy-listen", "127.0.0.1:26379", "address of the toxiproxy proxy in front of --addr")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	wl, err := workload.Get(benchWorkload)
	if err != nil {
		return err
	}
	workload.SetHotKeyCount(benchHotKeys)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if benchDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, benchDuration)
		defer cancel()
	}

	exporter := promexporter.NewExporter()
	metrics := exporter.ClientMetrics()

	var (
		client *respkv.Client
		runner *workload.Runner
		dash   *dashboard.Dashboard
	)
	if benchTUI {
		dash = dashboard.New("respkv bench: "+wl.Name(), func() dashboard.Snapshot {
			return dashboard.Snapshot{
				Timestamp: time.Now(),
				Workload:  runner.Stats(),
				Client:    client.Stats(),
				Breakers:  client.CircuitBreakerStates(),
			}
		})
	}
	logf := func(format string, args ...any) {
		if dash != nil {
			dash.Logf(format, args...)
			return
		}
		fmt.Fprintf(out, format+"\n", args...)
	}

	serverAddr := addr
	var scenario chaos.Scenario
	var env chaos.Env
	if benchScenario != "" {
		scenario, err = chaos.Get(benchScenario)
		if err != nil {
			return err
		}
		proxy, err := chaos.SetupProxy(ctx, chaos.ProxyConfig{
			APIAddr:  benchToxiproxy,
			Name:     "respkv-bench",
			Listen:   benchProxyListen,
			Upstream: addr,
		})
		if err != nil {
			return err
		}
		defer proxy.Delete()

		serverAddr = benchProxyListen
		env = chaos.Env{Proxy: proxy, Recovery: 5 * time.Second, Logf: logf}
	}

	client, err = newClient(serverAddr, func(config *respkv.Config) {
		if benchTUI {
			config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
		config.NewCircuitBreaker = func(serverAddr string) respkv.CircuitBreaker {
			return respkv.NewGoBreaker(gobreaker.Settings{
				Name:        serverAddr,
				MaxRequests: 3,
				Interval:    30 * time.Second,
				Timeout:     5 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
					return counts.Requests >= 10 && failureRatio >= 0.3
				},
				OnStateChange: func(name string, from, to gobreaker.State) {
					logf("Circuit breaker %s: %s -> %s", name, from, to)
					metrics.RecordCircuitBreakerTransition(name, from, to)
				},
			})
		}
	})
	if err != nil {
		return err
	}
	defer client.Close()

	runner = workload.NewRunner(client, wl, benchConcurrency)
	runner.OnResult = func(err error) { metrics.RecordOperation(err == nil) }

	if benchMetricsAddr != "" {
		go func() {
			logf("Serving metrics on http://%s/metrics", benchMetricsAddr)
			if err := exporter.ListenAndServe(benchMetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logf("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.Observe(client)
			}
		}
	}()

	if scenario != nil {
		go func() {
			logf("Scenario %s: %s", scenario.Name(), scenario.Description())
			if err := scenario.Run(ctx, env); err != nil && ctx.Err() == nil {
				logf("Scenario %s failed: %v", scenario.Name(), err)
			}
		}()
	}

	logf("Running %s with %d workers against %s", wl.Name(), benchConcurrency, serverAddr)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	if dash != nil {
		if err := dash.Run(ctx.Done()); err != nil {
			return err
		}
		stop()
	}

	if err := <-done; err != nil {
		return err
	}

	stats := client.Stats()
	fmt.Fprintf(out, "Workload: %s\n", runner.Stats())
	fmt.Fprintf(out, "Client: connects=%d connect_errors=%d commands=%d send_errors=%d receive_errors=%d health_checks=%d check_failures=%d replacements=%d\n",
		stats.Connects, stats.ConnectErrors, stats.Commands, stats.SendErrors, stats.ReceiveErrors,
		stats.HealthChecks, stats.HealthCheckFailures, stats.Replacements)
	return nil
}
