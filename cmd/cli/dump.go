package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"widekv/internal/batch"
	"widekv/internal/journal"
	"widekv/internal/widecolumn"
)

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file.batch|file.journal>",
		Short: "Print every record of a batch file or journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpFile(commandContext(cmd), cmd.OutOrStdout(), args[0])
		},
	}
}

func dumpFile(ctx context.Context, w io.Writer, path string) error {
	if strings.ToLower(filepath.Ext(path)) == ".journal" {
		return dumpJournal(ctx, w, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := batch.FromData(data)
	if err != nil {
		return err
	}
	printf(w, "Dumping batch: %s\n\n", path)
	return dumpBatch(w, b)
}

func dumpJournal(ctx context.Context, w io.Writer, path string) error {
	printf(w, "Dumping journal: %s\n\n", path)

	it, err := journal.OpenIterator(ctx, path)
	if err != nil {
		return err
	}
	defer it.Close()

	for n := 0; ; n++ {
		b, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			printf(w, "Total batches: %d\n", n)
			return nil
		}
		printf(w, "batch %d seq=%d count=%d\n", n, b.Sequence(), b.Len())
		if err := dumpBatch(w, b); err != nil {
			return err
		}
		printf(w, "\n")
	}
}

func dumpBatch(w io.Writer, b *batch.WriteBatch) error {
	printf(w, "%-8s %4s %-20s %10s  %s\n", "OP", "CF", "KEY", "SEQ", "VALUE")

	r := b.Reader()
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		// Truncate key if longer than 20 chars
		key := string(rec.Key)
		if len(key) > 20 {
			key = key[:20]
		}

		seq := b.Sequence() + uint64(r.Count()) - 1
		switch rec.Kind {
		case batch.KindLogData:
			printf(w, "%-8s %4s %-20s %10s  %q\n", rec.Kind, "", "", "", rec.Value)
		case batch.KindWideColumnEntity, batch.KindCFWideColumnEntity:
			printf(w, "%-8s %4d %-20s %10d  %s\n", rec.Kind, rec.ColumnFamily, key, seq, formatEntity(rec.Value))
		default:
			printf(w, "%-8s %4d %-20s %10d  %s\n", rec.Kind, rec.ColumnFamily, key, seq, rec.Value)
		}
	}
	printf(w, "Total records: %d\n", b.Len())
	return nil
}

func formatEntity(data []byte) string {
	cols, err := widecolumn.Decode(data)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, string(c.Name)+"="+string(c.Value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
