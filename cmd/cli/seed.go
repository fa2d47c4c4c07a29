package main

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"widekv/internal/batch"
	"widekv/internal/common"
	"widekv/internal/db"
)

const seedIndexKey = "__cli_seed_index__"

func loadSeedIndex(engine *db.DB, cf *db.ColumnFamilyHandle) int {
	if val, err := engine.Get(cf, []byte(seedIndexKey)); err == nil {
		if idx, err := strconv.Atoi(string(val)); err == nil {
			return idx
		}
	}
	return 0
}

var kvPairs = [][2]string{
	{"apple", "artichoke"},
	{"banana", "broccoli"},
	{"cherry", "cabbage"},
	{"durian", "daikon"},
	{"elderberry", "eggplant"},
	{"fig", "fennel"},
	{"grapefruit", "ginger"},
	{"honeydew", "horseradish"},
	{"imbe", "ivygourd"},
	{"jackfruit", "jicama"},
	{"kiwi", "kale"},
	{"lime", "leek"},
	{"mango", "mushroom"},
	{"nectarine", "nopale"},
	{"orange", "okra"},
	{"peach", "peas"},
	{"quince", "quinoa"},
	{"raspberry", "radish"},
	{"strawberry", "spinach"},
	{"tangerine", "tomato"},
	{"ugni", "ube"},
	{"voavanga", "vanilla"},
	{"watermelon", "watercress"},
	{"ximenia", "xanthan"},
	{"yuzu", "yam"},
	{"zarzamora", "zucchini"},
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <x>",
		Short: "Write x rounds of sample entities, one batch per round",
		Args:  cobra.ExactArgs(1),
		RunE: withEngine(a, func(cmd *cobra.Command, engine *db.DB, cf *db.ColumnFamilyHandle, args []string) error {
			x, err := strconv.Atoi(args[0])
			if err != nil || x < 1 {
				return common.InvalidArgumentf("seed: x must be a positive integer")
			}
			count, first, err := runSeed(engine, cf, x)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "seeded %d entities (%d * %d, index %d-%d)\n", count, len(kvPairs), x, first, first+x-1)
			return nil
		}),
	}
}

// runSeed writes each round as one batch of entities with a "fruit" and a
// "vegetable" column, and persists the next index in the same batch.
func runSeed(engine *db.DB, cf *db.ColumnFamilyHandle, x int) (count, first int, err error) {
	start := time.Now()
	seedIndex := loadSeedIndex(engine, cf)
	first = seedIndex

	var family batch.ColumnFamily
	if cf != nil {
		family = cf
	}

	// Randomize the order of fruits for more realistic workload
	shuffled := make([][2]string, len(kvPairs))
	copy(shuffled, kvPairs)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	b := batch.New()
	for i := 0; i < x; i++ {
		b.Clear()
		for _, pair := range shuffled {
			key := fmt.Sprintf("%s%d", pair[0], seedIndex)
			err := b.PutEntityCF(family, []byte(key),
				[][]byte{[]byte("fruit"), []byte("vegetable")},
				[][]byte{[]byte(pair[0]), []byte(fmt.Sprintf("%s%d", pair[1], seedIndex))})
			if err != nil {
				return count, first, err
			}
		}
		seedIndex++
		b.PutCF(family, []byte(seedIndexKey), []byte(strconv.Itoa(seedIndex)))
		if err := engine.Write(b); err != nil {
			return count, first, err
		}
		count += len(shuffled)
	}

	common.LogDuration(common.Root, start, "seeded %d entities (%d * %d, index %d-%d) - %v/entity",
		count, len(kvPairs), x, first, seedIndex-1, time.Since(start)/time.Duration(count))
	return count, first, nil
}
