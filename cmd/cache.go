package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pc, st, err := openCache(ctx, cfg)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}
		if !pc.Enabled() {
			fmt.Fprintln(cmd.OutOrStdout(), "cache is disabled")
			return nil
		}

		n, err := pc.Prune(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("cache pruned", zap.Int64("deleted", n))
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
