package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/natal-cli/internal/store"
	"github.com/sells-group/natal-cli/pkg/geocode"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the location cache",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("cache")
	},
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		zap.L().Info("cache migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		n, err := cache.Prune(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache prune")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d expired entries\n", n)
		return nil
	},
}

var cacheSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Pre-load the cache with every gazetteer place",
	RunE: func(cmd *cobra.Command, _ []string) error {
		gaz, err := geocode.NewGazetteerProvider(cfg.Geocode.GazetteerPath)
		if err != nil {
			return err
		}
		cache, err := openCache(cmd.Context())
		if err != nil {
			return err
		}
		defer cache.Close() //nolint:errcheck

		entries := gazetteerEntries(gaz.Places(), time.Now())
		n, err := cache.Seed(cmd.Context(), entries)
		if err != nil {
			return eris.Wrap(err, "cache seed")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheMigrateCmd, cachePruneCmd, cacheSeedCmd)
	rootCmd.AddCommand(cacheCmd)
}

// gazetteerEntries keys every place under both its key and its display
// name, the two spellings users most often type. Places earlier in the
// table win duplicate keys, matching lookup order.
func gazetteerEntries(places []geocode.Place, now time.Time) []store.Entry {
	entries := lo.FlatMap(places, func(p geocode.Place, _ int) []store.Entry {
		loc := p.Location(now)
		return []store.Entry{
			{Key: geocode.CacheKey(p.Key), Location: loc},
			{Key: geocode.CacheKey(p.Name), Location: loc},
		}
	})
	return lo.UniqBy(entries, func(e store.Entry) string { return e.Key })
}
