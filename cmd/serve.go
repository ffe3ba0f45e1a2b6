package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve loan artifacts and the run ledger over HTTP",
	Long:  "Read-only viewer for processed loans: artifact files, consistency summaries, Form 1003 timelines, and the step execution ledger.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		fs := loanfs.New(cfg.Paths.LoanDocs)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(fs, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("server listening", zap.Int("port", port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			zap.L().Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "serve")
			}
			return nil
		}
	},
}

func newRouter(fs loanfs.Layout, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/loans", func(w http.ResponseWriter, _ *http.Request) {
		ids, err := fs.LoanIDs()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		type loanInfo struct {
			LoanID      string `json:"loan_id"`
			HasSummary  bool   `json:"has_summary"`
			HasTimeline bool   `json:"has_timeline"`
		}
		loans := make([]loanInfo, 0, len(ids))
		for _, id := range ids {
			loans = append(loans, loanInfo{
				LoanID:      id,
				HasSummary:  loanfs.Exists(fs.SummaryFile(id)),
				HasTimeline: loanfs.Exists(fs.TimelineFile(id)),
			})
		}
		writeJSON(w, http.StatusOK, loans)
	})

	r.Get("/api/loans/{loanID}/summary", func(w http.ResponseWriter, req *http.Request) {
		serveLoanJSON(w, fs.SummaryFile(chi.URLParam(req, "loanID")))
	})

	r.Get("/api/loans/{loanID}/timeline", func(w http.ResponseWriter, req *http.Request) {
		serveLoanJSON(w, fs.TimelineFile(chi.URLParam(req, "loanID")))
	})

	r.Get("/api/loans/{loanID}/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			LoanID: chi.URLParam(req, "loanID"),
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		runs, err := st.ListRuns(req.Context(), store.RunFilter{
			LoanID: q.Get("loan"),
			Step:   q.Get("step"),
			Status: model.StepStatus(q.Get("status")),
			Limit:  limit,
		})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	// Raw artifact browser over the loan_docs tree.
	r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(fs.Root))))

	return r
}

func serveLoanJSON(w http.ResponseWriter, path string) {
	var doc json.RawMessage
	if err := loanfs.ReadJSON(path, &doc); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
