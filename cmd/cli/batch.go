package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/db"
	"widekv/internal/journal"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build and apply exported write batches",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "build <file> <op>...",
			Short: "Encode operations into a batch file",
			Long: `Encode operations into a batch file without applying them.

Operations:
  put:<key>=<value>
  del:<key>
  delrange:<begin>..<end>
  entity:<key>:<name>=<value>[,<name>=<value>...]
  log:<blob>

--cf applies to every operation.`,
			Args: cobra.MinimumNArgs(2),
			RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
				b, err := buildBatch(cf, args[1:])
				if err != nil {
					return err
				}
				if err := os.WriteFile(args[0], b.Data(), 0o644); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "wrote %d records (%d bytes) to %s\n", b.Len(), b.Size(), args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "apply <file>",
			Short: "Apply a batch file atomically",
			Args:  cobra.ExactArgs(1),
			RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, _ *db.ColumnFamilyHandle, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				b, err := batch.FromData(data)
				if err != nil {
					return err
				}
				if err := engine.Write(b); err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "applied %d records, last sequence %d\n", b.Len(), engine.LastSequence())
				return nil
			}),
		},
	)
	return cmd
}

func buildBatch(h *db.ColumnFamilyHandle, ops []string) (*batch.WriteBatch, error) {
	var cf batch.ColumnFamily
	if h != nil {
		cf = h
	}

	b := batch.New()
	for _, op := range ops {
		kind, rest, _ := strings.Cut(op, ":")
		switch kind {
		case "put":
			key, value, ok := strings.Cut(rest, "=")
			if !ok {
				return nil, common.InvalidArgumentf("op %q: expected put:<key>=<value>", op)
			}
			b.PutCF(cf, []byte(key), []byte(value))
		case "del":
			b.DeleteCF(cf, []byte(rest))
		case "delrange":
			begin, end, ok := strings.Cut(rest, "..")
			if !ok {
				return nil, common.InvalidArgumentf("op %q: expected delrange:<begin>..<end>", op)
			}
			b.DeleteRangeCF(cf, []byte(begin), []byte(end))
		case "entity":
			key, cols, _ := strings.Cut(rest, ":")
			var fields []string
			if cols != "" {
				fields = strings.Split(cols, ",")
			}
			names, values, err := parseColumns(fields)
			if err != nil {
				return nil, err
			}
			if err := b.PutEntityCF(cf, []byte(key), names, values); err != nil {
				return nil, err
			}
		case "log":
			b.PutLogData([]byte(rest))
		default:
			return nil, common.InvalidArgumentf("op %q: unknown operation %q", op, kind)
		}
	}
	return b, nil
}

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Work with batch journals",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "replay <path>",
		Short: "Apply every batch of a journal in order",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, _ *db.ColumnFamilyHandle, args []string) error {
			it, err := journal.OpenIterator(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			defer it.Close()

			n := 0
			for {
				b, ok, err := it.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				if err := engine.Write(b); err != nil {
					return err
				}
				n++
			}
			printf(cmd.OutOrStdout(), "replayed %d batches, last sequence %d\n", n, engine.LastSequence())
			return nil
		}),
	})
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
