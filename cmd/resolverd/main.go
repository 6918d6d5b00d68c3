// Command resolverd runs the conversation thread resolver as an HTTP
// service: POST /resolve to run the pipeline, GET /health for the C8
// snapshot. Config loading (.env then os.Getenv) and the startup log
// banner follow cmd/bud/main.go's style.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vthunder/bud2/internal/analyzer"
	"github.com/vthunder/bud2/internal/config"
	"github.com/vthunder/bud2/internal/decision"
	"github.com/vthunder/bud2/internal/embeddingclient"
	"github.com/vthunder/bud2/internal/health"
	"github.com/vthunder/bud2/internal/intentclient"
	"github.com/vthunder/bud2/internal/nerclient"
	"github.com/vthunder/bud2/internal/resolver"
	"github.com/vthunder/bud2/internal/sentimentclient"
	"github.com/vthunder/bud2/internal/threadcontext"
	"github.com/vthunder/bud2/internal/workingstore"
)

const version = "resolverd-v1"

func main() {
	log.Printf("conversation thread resolver %s", version)
	log.Println("==================================")

	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file found, using environment variables")
	} else {
		log.Println("[config] loaded .env file")
	}

	cfg := config.FromEnv()

	httpPort := os.Getenv("RESOLVER_HTTP_PORT")
	if httpPort == "" {
		httpPort = "8090"
	}

	embedder := embeddingclient.New(cfg.EmbeddingServiceURL, "default", cfg.EmbeddingDimension, cfg.AdapterDeadline, cfg.EmbeddingCacheTTL, 10_000, cfg.EnableCaching)
	intentClient := intentclient.New(cfg.IntentServiceURL, cfg.AdapterDeadline)
	nerClient := nerclient.New(cfg.NERServiceURL, cfg.AdapterDeadline)
	sentimentClient := sentimentclient.New(cfg.SentimentServiceURL, cfg.AdapterDeadline)
	store := workingstore.NewHTTPStore(cfg.WorkingStoreURL, cfg.AdapterDeadline)

	msgAnalyzer := analyzer.New(embedder, intentClient, nerClient, sentimentClient, cfg.AnalyzerDeadline, cfg.EmbeddingDimension)
	contextBuilder := threadcontext.New(store, embedder, intentClient, nerClient, cfg.DormancyThreshold, cfg.AdapterDeadline, cfg.ContextCacheTTL, 5_000, cfg.MaxThreadContextMessages, cfg.EnableCaching)

	thresholds := decision.Thresholds{
		SemanticSimilarity: cfg.SemanticSimilarityThreshold,
		TopicShift:         cfg.TopicShiftThreshold,
	}

	monitor := health.New(embedder, contextBuilder)

	r := resolver.New(msgAnalyzer, contextBuilder, thresholds, monitor, cfg.ResolverTotalDeadline)

	mux := http.NewServeMux()
	mux.HandleFunc("/resolve", handleResolve(r))
	mux.HandleFunc("/health", handleHealth(monitor))

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

type resolveRequest struct {
	UserID        string   `json:"user_id"`
	Message       string   `json:"message"`
	RecentIntents []string `json:"recent_intents,omitempty"`
}

func handleResolve(r *resolver.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body resolveRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
		if body.UserID == "" || body.Message == "" {
			http.Error(w, "user_id and message are required", http.StatusBadRequest)
			return
		}

		resolution := r.Resolve(req.Context(), body.UserID, body.Message, body.RecentIntents)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resolution)
	}
}

func handleHealth(m *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		snap := m.Snapshot()
		status := http.StatusOK
		if !m.Healthy() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(snap)
	}
}
