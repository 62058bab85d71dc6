package main

import (
	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the normalizer over HTTP",
		Long: `Start an HTTP API exposing match, normalize, cluster and learn endpoints backed
by the configured reference table.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scorer, err := scorerFor(cfg)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			srv, err := server.New(reftable.NewCache(store, cfg.Reference.CacheTTL), server.Config{
				Addr:           addr,
				Scorer:         scorer,
				Threshold:      cfg.Matching.Threshold,
				LearnThreshold: cfg.Learning.Threshold,
				LearnEnabled:   cfg.Learning.Enabled,
				Thresholds:     cfg.Clustering.Thresholds,
			})
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	return cmd
}
