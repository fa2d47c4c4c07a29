package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"widekv/internal/common"
	"widekv/internal/db"
	"widekv/internal/widecolumn"
)

// withEngine opens the engine, resolves --cf and runs fn.
func withEngine(a *app, fn func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		engine, err := a.open()
		if err != nil {
			return err
		}
		cf, err := a.columnFamily(engine)
		if err != nil {
			return err
		}
		return fn(cmd, engine, cf, args)
	}
}

func newPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Write a plain value",
		Args:  cobra.ExactArgs(2),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			if err := engine.Put(cf, []byte(args[0]), []byte(args[1])); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "ok\n")
			return nil
		}),
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a value (the default column of an entity)",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			value, err := engine.Get(cf, []byte(args[0]))
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s\n", value)
			return nil
		}),
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			if err := engine.Delete(cf, []byte(args[0])); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "ok\n")
			return nil
		}),
	}
}

// parseColumns splits name=value arguments. A bare "=value" is the default
// column.
func parseColumns(args []string) (names, values [][]byte, err error) {
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, common.InvalidArgumentf("column %q: expected name=value", arg)
		}
		names = append(names, []byte(name))
		values = append(values, []byte(value))
	}
	return names, values, nil
}

func newPutEntityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put-entity <key> <name=value>...",
		Short: "Write a wide-column entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			names, values, err := parseColumns(args[1:])
			if err != nil {
				return err
			}
			if err := engine.PutEntity(cf, []byte(args[0]), names, values); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "ok\n")
			return nil
		}),
	}
}

func printColumns(cmd *cobra.Command, cols widecolumn.Iterable) {
	for col := range cols.All() {
		printf(cmd.OutOrStdout(), "  %q = %q\n", col.Name, col.Value)
	}
}

func newGetEntityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-entity <key>",
		Short: "Print every column of a key",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			return engine.WithEntity(cf, []byte(args[0]), func(cols widecolumn.Iterable) error {
				printf(cmd.OutOrStdout(), "%s (%d columns)\n", args[0], cols.Len())
				printColumns(cmd, cols)
				return nil
			})
		}),
	}
}

func newScanCmd(a *app) *cobra.Command {
	var from string
	var limit int
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List keys of a column family with their columns",
		Args:  cobra.NoArgs,
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			it, err := engine.NewIterator(cf)
			if err != nil {
				return err
			}
			defer it.Close()

			n := 0
			for ok := it.SeekGE([]byte(from)); ok && (limit <= 0 || n < limit); ok = it.Next() {
				cols, err := it.Columns()
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%s\n", it.Key())
				printColumns(cmd, cols)
				n++
			}
			if err := it.Error(); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d keys\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "start key")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum keys to print (0 for all)")
	return cmd
}

func newCFCmd(a *app) *cobra.Command {
	cf := &cobra.Command{
		Use:   "cf",
		Short: "Manage column families",
	}
	cf.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a column family",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, err := a.open()
				if err != nil {
					return err
				}
				h, err := engine.CreateColumnFamily(args[0])
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "created %s (id %d)\n", h.Name(), h.ID())
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List column families",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, err := a.open()
				if err != nil {
					return err
				}
				for _, name := range engine.ColumnFamilies() {
					h, err := engine.ColumnFamily(name)
					if err != nil {
						return errors.Wrap(err, "list column families")
					}
					printf(cmd.OutOrStdout(), "%4d  %s\n", h.ID(), name)
				}
				return nil
			},
		},
	)
	return cf
}
