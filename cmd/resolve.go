package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <place>",
	Short: "Resolve a place name to coordinates and timezone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx, "chart")
		if err != nil {
			return err
		}
		defer env.Close()

		loc, err := env.Resolver.Resolve(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "resolve")
		}
		if !loc.Found {
			zap.L().Warn("place not found", zap.String("place", args[0]))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(loc), "encode location")
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
