package main

import (
	"fmt"
	"io"

	"github.com/pior/respkv"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec COMMAND [ARG...]",
	Short: "Run one command and print its reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *respkv.Session) error {
			reply, err := s.Exec(cmd.Context(), respkv.Args(args))
			if err != nil {
				return err
			}
			defer reply.Release()

			printReply(cmd.OutOrStdout(), reply)
			return reply.Err()
		})
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func printReply(w io.Writer, reply *respkv.Reply) {
	fmt.Fprintln(w, reply.Read().String())
}
