package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/export"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/progress"
)

var servePort int

// analyzer runs one analysis. *pipeline.Orchestrator satisfies it.
type analyzer interface {
	Run(ctx context.Context, sector string, sub progress.Subscriber) (*model.AnalysisResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API with streaming analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env.Orchestrator, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
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

// buildRouter wires the HTTP API. A nil runner answers /analyze with 503.
func buildRouter(runner analyzer, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/analyze", analyzeHandler(runner))
	return r
}

type analyzeRequest struct {
	MarketSector string `json:"marketSector"`
}

// streamEvent is one SSE payload. Type is progress, complete or error.
type streamEvent struct {
	Type   string                `json:"type"`
	RunID  string                `json:"runId,omitempty"`
	Event  *model.ProgressEvent  `json:"event,omitempty"`
	Result *model.AnalysisResult `json:"result,omitempty"`
	CSV    string                `json:"csv,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func analyzeHandler(runner analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline not configured"})
			return
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		sector := strings.TrimSpace(req.MarketSector)
		if sector == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "marketSector is required"})
			return
		}

		if wantsStream(r) {
			streamAnalysis(w, r, runner, sector)
			return
		}

		result, err := runner.Run(r.Context(), sector, nil)
		if err != nil {
			zap.L().Error("analysis failed", zap.String("sector", sector), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "result": result})
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func wantsStream(r *http.Request) bool {
	if r.URL.Query().Get("stream") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

type outcome struct {
	result *model.AnalysisResult
	err    error
}

// streamAnalysis runs the analysis and relays its progress as Server-Sent
// Events, ending with a complete or error event.
func streamAnalysis(w http.ResponseWriter, r *http.Request, runner analyzer, sector string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := progress.Channel(256)
	done := make(chan outcome, 1)
	go func() {
		res, err := runner.Run(r.Context(), sector, sink.Send)
		sink.Close()
		done <- outcome{result: res, err: err}
	}()

	send := func(ev streamEvent) {
		b, err := json.Marshal(ev)
		if err != nil {
			zap.L().Error("sse: marshal event", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}

	for ev := range sink.C() {
		send(streamEvent{Type: "progress", Event: &ev})
	}
	out := <-done

	if dropped := sink.Dropped(); dropped > 0 {
		zap.L().Warn("sse: dropped progress events", zap.Int64("dropped", dropped))
	}

	if out.err != nil {
		ev := streamEvent{Type: "error", Error: out.err.Error()}
		if out.result != nil {
			ev.RunID = out.result.RunID
		}
		send(ev)
		return
	}

	csv, err := export.CSV(out.result.Scores)
	if err != nil {
		zap.L().Warn("sse: csv export failed", zap.Error(err))
	}
	send(streamEvent{Type: "complete", RunID: out.result.RunID, Result: out.result, CSV: string(csv)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
