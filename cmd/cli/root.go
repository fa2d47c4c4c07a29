package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"widekv/internal/common"
	"widekv/internal/db"
	"widekv/internal/journal"
)

// app holds state shared by every command of one process. In the shell the
// engine stays open across commands.
type app struct {
	dir         string
	inMemory    bool
	logLevel    string
	journalPath string
	family      string

	engine  *db.DB
	journal *journal.FileLog
	shell   bool
	history *History
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "widekv",
		Short: "wide-column key-value store",
		Long: `widekv stores plain values and wide-column entities in column families.
Writes go through encoded write batches, which can be exported to files,
journaled, dumped and replayed.

Examples:
  widekv put apple artichoke
  widekv --cf fruit put-entity apple color=red taste=sweet
  widekv --cf fruit get-entity apple
  widekv dump batches.journal
  widekv shell`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.shell {
				return nil
			}
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.dir, "dir", db.DefaultOptions.Dir, "data directory")
	root.PersistentFlags().BoolVar(&a.inMemory, "in-memory", false, "keep all data in memory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.journalPath, "journal", "", "append every committed batch to this journal file")
	root.PersistentFlags().StringVar(&a.family, "cf", "", "column family (default family if empty)")

	root.AddCommand(
		newPutCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newPutEntityCmd(a),
		newGetEntityCmd(a),
		newScanCmd(a),
		newCFCmd(a),
		newBatchCmd(a),
		newJournalCmd(a),
		newSeedCmd(a),
		newDumpCmd(),
		newInspectCmd(),
		newShellCmd(a),
	)
	return root
}

func (a *app) setup() error {
	level, err := common.ParseLogLevel(a.logLevel)
	if err != nil {
		return err
	}
	common.InitLogging(common.LogOptions{Level: level})
	return nil
}

// open starts the engine on first use.
func (a *app) open() (*db.DB, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	opts := []db.Option{db.WithDir(a.dir)}
	if a.inMemory {
		opts = append(opts, db.WithInMemory())
	}
	if a.journalPath != "" {
		jl, err := journal.Open(a.journalPath)
		if err != nil {
			return nil, err
		}
		a.journal = jl
		opts = append(opts, db.WithJournal(jl))
	}

	engine, err := db.Open(opts...)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return engine, nil
}

func (a *app) teardown() error {
	var err error
	if a.engine != nil {
		err = a.engine.Close()
		a.engine = nil
	}
	if a.journal != nil {
		if jerr := a.journal.Close(); err == nil {
			err = jerr
		}
		a.journal = nil
	}
	if a.history != nil {
		if herr := a.history.save(); err == nil {
			err = herr
		}
		a.history = nil
	}
	return err
}

// columnFamily resolves --cf. An empty name is the default family.
func (a *app) columnFamily(engine *db.DB) (*db.ColumnFamilyHandle, error) {
	if a.family == "" {
		return nil, nil
	}
	return engine.ColumnFamily(a.family)
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
