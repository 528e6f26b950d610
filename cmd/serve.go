package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trackless/cred1/internal/dataset"
	"github.com/trackless/cred1/internal/merge"
	"github.com/trackless/cred1/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the built dataset over a small lookup API",
	Long: "Loads the compact dataset into memory and serves per-domain lookups.\n" +
		"A domain absent from the dataset is not rated, which is not the same\n" +
		"thing as reliable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		entries, err := loadCompactDataset(filepath.Join(cfg.Data.Dir, pipeline.FileCompactJSON))
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newCheckRouter(entries),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Int("domains", len(entries)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// loadCompactDataset reads the compact output produced by build into memory.
func loadCompactDataset(path string) (map[string]dataset.CompactEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "open compact dataset (run build first)")
	}

	var entries map[string]dataset.CompactEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "parse compact dataset")
	}
	return entries, nil
}

// newCheckRouter builds the lookup API over an in-memory dataset.
func newCheckRouter(entries map[string]dataset.CompactEntry) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"domains": len(entries),
		})
	})

	r.Get("/v1/check/{domain}", func(w http.ResponseWriter, req *http.Request) {
		domain, err := merge.NormalizeDomain(chi.URLParam(req, "domain"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid domain"})
			return
		}

		entry, ok := entries[domain]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"domain": domain,
				"error":  "not rated",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"domain": domain,
			"rating": entry,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("failed to write response", zap.Error(err))
	}
}
