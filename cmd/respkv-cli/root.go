package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pior/respkv"
	"github.com/spf13/cobra"
)

var (
	addr           string
	timeout        time.Duration
	checkAfterIdle time.Duration
	circuitBreaker bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "respkv-cli",
	Short: "Run commands against a RESP key-value server",
	Long: "respkv-cli talks to a Redis-compatible server through the respkv client: " +
		"one connection per session, health-checked and replaced when broken.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runREPL(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&addr, "addr", "127.0.0.1:6379", "server address")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "timeout of each blocking operation (0 for none)")
	flags.DurationVar(&checkAfterIdle, "check-after-idle", 30*time.Second, "health-check connections idle for longer than this (0 to disable)")
	flags.BoolVar(&circuitBreaker, "circuit-breaker", false, "guard connection attempts with a circuit breaker")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log connection events")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient builds a client from the global flags, connecting to serverAddr.
func newClient(serverAddr string, configure ...func(*respkv.Config)) (*respkv.Client, error) {
	config := respkv.Config{
		Addr:           serverAddr,
		Timeout:        timeout,
		CheckAfterIdle: checkAfterIdle,
		Logger:         newLogger(),
	}
	if circuitBreaker {
		config.NewCircuitBreaker = respkv.NewGobreakerConfig(1, time.Minute, 5*time.Second)
	}
	for _, fn := range configure {
		fn(&config)
	}

	client, err := respkv.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// withSession runs fn with a session of a new client.
func withSession(fn func(s *respkv.Session) error) error {
	client, err := newClient(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	s, err := client.Session()
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(s)
}
