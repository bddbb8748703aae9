package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dublett/internal/blobstore"
	"dublett/internal/config"
	"dublett/internal/engine"
	"dublett/internal/server"
	"dublett/internal/similarity"
	"dublett/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run the dublett API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			if warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel); err != nil {
				return err
			} else if warning != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}
			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}
			if cfg.Server.ListenAddr != "" && cfg.Server.ListenAddr != config.DefaultListenAddr {
				addr = cfg.Server.ListenAddr
			}

			policy := similarity.DefaultPolicy()
			if cfg.Engine.PolicyPath != "" {
				policy, err = similarity.LoadPolicy(cfg.Engine.PolicyPath)
				if err != nil {
					return fmt.Errorf("load similarity policy: %w", err)
				}
				logger.Info("loaded similarity policy", "path", cfg.Engine.PolicyPath)
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			bs, err := blobstore.NewLocalCAS(cfg.BlobRoot)
			if err != nil {
				return err
			}

			eng := engine.New(st, bs, similarity.NewComparator(policy), logger, engine.Options{
				LockWait:       cfg.LockWait(),
				ClaimTimeout:   cfg.ClaimTimeout(),
				CandidateLimit: cfg.Engine.CandidateLimit,
			})

			srv := server.New(addr, st, eng, bs, cfg.Uploads, cfg.Server.AdminTokenHash, logger)
			return srv.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}
