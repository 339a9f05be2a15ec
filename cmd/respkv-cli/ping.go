package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pior/respkv"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Health-check the connection and measure PING latency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		return withSession(func(s *respkv.Session) error {
			ctx := cmd.Context()

			start := time.Now()
			conn, err := s.Conn(ctx, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Connected to %s, health check passed (took %v)\n", conn.Addr(), time.Since(start))

			for i := range pingCount {
				if i > 0 {
					time.Sleep(pingInterval)
				}

				start := time.Now()
				reply, err := s.Do(ctx, "PING")
				duration := time.Since(start)
				if err != nil {
					fmt.Fprintf(out, "ping %d: error: %v (took %v)\n", i+1, err, duration)
					continue
				}
				status, err := respkv.As[string](reply)
				reply.Release()
				if err != nil {
					fmt.Fprintf(out, "ping %d: unexpected reply: %v\n", i+1, err)
					continue
				}
				fmt.Fprintf(out, "ping %d: %s (took %v)\n", i+1, status, duration)
			}

			printStats(out, s)
			return nil
		})
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "number of pings")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", time.Second, "time between pings")
	rootCmd.AddCommand(pingCmd)
}

func printStats(w io.Writer, s *respkv.Session) {
	fmt.Fprintf(w, "Session %d\n", s.ID())
	if s.CheckScheduled() {
		fmt.Fprintln(w, "  health check scheduled for next use")
	}
}
