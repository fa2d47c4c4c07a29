package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt that keeps the database open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(a, cmd)
		},
	}
}

func runShell(a *app, cmd *cobra.Command) (err error) {
	engine, err := a.open()
	if err != nil {
		return err
	}
	a.shell = true
	defer func() {
		a.shell = false
		if terr := a.teardown(); err == nil {
			err = terr
		}
	}()

	if a.history == nil {
		if h, herr := newHistory(); herr == nil {
			a.history = h
		} else {
			printf(cmd.ErrOrStderr(), "warning: history disabled: %v\n", herr)
		}
	}

	out := cmd.OutOrStdout()
	printf(out, "widekv shell (last sequence %d, families %s)\n",
		engine.LastSequence(), strings.Join(engine.ColumnFamilies(), ","))
	printf(out, "type a command without the program name, 'history [n]' or 'exit'\n")

	in := newLineReader(cmd.InOrStdin(), out, a.history)
	defer in.Close()

	for {
		line, perr := in.Prompt("> ")
		if errors.Is(perr, io.EOF) {
			return nil
		}
		if perr != nil {
			return perr
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)
		if a.history != nil {
			a.history.add(line)
		}

		parts := strings.Fields(line)
		switch strings.ToLower(parts[0]) {
		case "exit", "quit":
			return nil
		case "history":
			n := 0
			if len(parts) > 1 {
				n, _ = strconv.Atoi(parts[1])
			}
			if a.history != nil {
				for _, c := range a.history.list(n) {
					printf(out, "  %s\n", c)
				}
			}
			continue
		case "shell":
			printf(out, "already in a shell\n")
			continue
		}

		sub := newRootCmd(a)
		sub.SetArgs(parts)
		sub.SetIn(cmd.InOrStdin())
		sub.SetOut(out)
		sub.SetErr(cmd.ErrOrStderr())
		sub.SilenceErrors = true
		if err := sub.Execute(); err != nil {
			printf(out, "error: %v\n", err)
		}
	}
}
