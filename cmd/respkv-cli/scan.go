package main

import (
	"fmt"

	"github.com/pior/respkv"
	"github.com/spf13/cobra"
)

var (
	scanMatch string
	scanCount int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List keys with SCAN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		return withSession(func(s *respkv.Session) error {
			var cursor uint64
			for {
				argv := respkv.Args{"SCAN"}
				if err := argv.AppendArgs(cursor, "COUNT", scanCount); err != nil {
					return err
				}
				if scanMatch != "" {
					argv.Append("MATCH", scanMatch)
				}

				reply, err := s.Exec(cmd.Context(), argv)
				if err != nil {
					return err
				}

				var keys []string
				ok, err := reply.DecodeScanInto(&cursor, &keys)
				if err == nil && !ok {
					err = fmt.Errorf("unexpected reply to SCAN: %s", reply.Read())
				}
				reply.Release()
				if err != nil {
					return err
				}

				for _, key := range keys {
					fmt.Fprintln(out, key)
				}
				if cursor == 0 {
					return nil
				}
			}
		})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanMatch, "match", "", "only keys matching this pattern")
	scanCmd.Flags().IntVar(&scanCount, "count", 100, "keys per page hint")
	rootCmd.AddCommand(scanCmd)
}
