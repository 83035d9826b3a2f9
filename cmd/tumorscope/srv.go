package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/analysis"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/artifact"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/config"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/server"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/store"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/upload"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the TumorScope API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if n, err := st.DeleteExpiredSessions(cmd.Context(), time.Now().UTC()); err != nil {
				logger.Warn("purge expired sessions", "error", err)
			} else if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}

			artifacts, err := artifact.NewStore(cfg.ArtifactDir, "/artifacts")
			if err != nil {
				return err
			}
			receiver, err := upload.NewReceiver(cfg.Upload.Dir)
			if err != nil {
				return err
			}

			timeout := time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
			invoker, err := analysis.NewInvoker(nil, artifacts, cfg.Analysis.PythonBin, cfg.Analysis.Script, timeout, slog.Default().With("component", "analysis"))
			if err != nil {
				return err
			}

			srv := server.New(addr, st, artifacts, receiver, invoker, server.Options{
				IngestAPIKey:       cfg.IngestAPIKey,
				MaxUploadBytes:     cfg.Upload.MaxUploadBytes,
				MultipartMaxMemory: cfg.Upload.MultipartMaxMemory,
			}, logger)
			return srv.ListenAndServe()
		},
	}
}
