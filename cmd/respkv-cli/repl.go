package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pior/respkv"
	"github.com/spf13/cobra"
)

// runREPL reads commands from stdin, one per line, until EOF or quit.
func runREPL(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	return withSession(func(s *respkv.Session) error {
		fmt.Fprintf(out, "Connected to %s. Type 'quit' to exit.\n", addr)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}

			args, err := splitArgs(scanner.Text())
			if err != nil {
				fmt.Fprintf(out, "(error) %v\n", err)
				continue
			}
			if len(args) == 0 {
				continue
			}

			switch strings.ToLower(args[0]) {
			case "quit", "exit":
				return nil
			case "stats":
				printStats(out, s)
				continue
			}

			reply, err := s.Exec(cmd.Context(), args)
			if err != nil {
				fmt.Fprintf(out, "(error) %v\n", err)
				continue
			}
			printReply(out, reply)
			reply.Release()
		}
		return scanner.Err()
	})
}

// splitArgs splits a line on spaces, keeping double-quoted arguments whole.
func splitArgs(line string) (respkv.Args, error) {
	var args respkv.Args
	var current strings.Builder
	inQuotes := false
	hasArg := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasArg = true
		case r == ' ' && !inQuotes:
			if hasArg {
				args.Append(current.String())
				current.Reset()
				hasArg = false
			}
		default:
			current.WriteRune(r)
			hasArg = true
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unbalanced quotes")
	}
	if hasArg {
		args.Append(current.String())
	}
	return args, nil
}
