package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"widekv/internal/batch"
	"widekv/internal/journal"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.batch|file.journal>",
		Short: "Summarize a batch file or journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectFile(commandContext(cmd), cmd.OutOrStdout(), args[0])
		},
	}
}

// summary counts records by kind across one or more batches.
type summary struct {
	batches  int
	records  int
	bytes    int
	minSeq   uint64
	maxSeq   uint64
	families map[uint32]int
	kinds    map[batch.Kind]int
}

func newSummary() *summary {
	return &summary{families: map[uint32]int{}, kinds: map[batch.Kind]int{}}
}

func (s *summary) add(b *batch.WriteBatch) error {
	if s.batches == 0 || b.Sequence() < s.minSeq {
		s.minSeq = b.Sequence()
	}
	if end := b.Sequence() + uint64(b.Len()); end > s.maxSeq {
		s.maxSeq = end
	}
	s.batches++
	s.bytes += b.Size()

	r := b.Reader()
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.kinds[rec.Kind]++
		if rec.Kind != batch.KindLogData {
			s.records++
			s.families[rec.ColumnFamily]++
		}
	}
	return nil
}

func (s *summary) print(w io.Writer) {
	printf(w, "Batches: %d\n", s.batches)
	printf(w, "Records: %d\n", s.records)
	printf(w, "Bytes:   %d\n", s.bytes)
	if s.maxSeq > 0 {
		printf(w, "Sequence range: %d-%d\n", s.minSeq, s.maxSeq-1)
	}
	printf(w, "\nBy kind:\n")
	for k := batch.Kind(0); k <= batch.KindCFWideColumnEntity; k++ {
		if n := s.kinds[k]; n > 0 {
			printf(w, "  %-10s %d\n", k, n)
		}
	}
	printf(w, "\nBy column family:\n")
	ids := make([]uint32, 0, len(s.families))
	for cf := range s.families {
		ids = append(ids, cf)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, cf := range ids {
		printf(w, "  %4d %d\n", cf, s.families[cf])
	}
}

func inspectFile(ctx context.Context, w io.Writer, path string) error {
	s := newSummary()

	if strings.ToLower(filepath.Ext(path)) == ".journal" {
		printf(w, "Inspecting journal: %s\n\n", path)
		it, err := journal.OpenIterator(ctx, path)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			b, ok, err := it.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := s.add(b); err != nil {
				return err
			}
		}
	} else {
		printf(w, "Inspecting batch: %s\n\n", path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		b, err := batch.FromData(data)
		if err != nil {
			return err
		}
		if err := s.add(b); err != nil {
			return err
		}
	}

	s.print(w)
	return nil
}
