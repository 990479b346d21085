// orchestrator-server wires the orchestrator core's collaborators —
// event bus, event store, agent registry, mode manager, worker pool — into
// a running HTTP API, grounded on the MCP-client-plus-HTTP-bridge startup
// sequence of PedroCLI's cmd/http-server/main.go.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orchestrator/internal/agent"
	"orchestrator/internal/agentregistry"
	"orchestrator/internal/config"
	"orchestrator/internal/eventbus"
	"orchestrator/internal/eventstore"
	"orchestrator/internal/httpapi"
	"orchestrator/internal/logging"
	"orchestrator/internal/metrics"
	"orchestrator/internal/modes"
	"orchestrator/internal/orchestrator"
	"orchestrator/internal/project"
	"orchestrator/internal/provider"
	"orchestrator/internal/workerpool"
)

func main() {
	log := logging.New("orchestrator-server")

	cfg, err := config.Load(os.Getenv("ORCH_CONFIG_PATH"))
	if err != nil {
		log.Error("load config", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}

	bus := eventbus.New(cfg.WorkerPool.MaxListeners)
	bus.OnHandlerError(func(eventType string, r interface{}) {
		log.Warn("event handler panic", logging.Fields{"event_type": eventType, "recovered": fmt.Sprint(r)})
	})
	metrics.Subscribe(bus)

	store, err := buildStore(cfg)
	if err != nil {
		log.Error("open event store", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}

	providers := buildProviders(cfg)

	registry := agentregistry.New(cfg.WorkerPool.Size)
	for _, typ := range allAgentTypes() {
		p, ok := providers.Get("ollama")
		if !ok {
			continue
		}
		if err := registry.Register(agent.NewPromptAgent(typ, agent.DefaultCapabilities(typ), p, "default")); err != nil {
			log.Warn("register agent", logging.Fields{"type": string(typ), "error": err.Error()})
		}
	}

	modeMgr := modes.NewManager(bus)
	pool := workerpool.New(cfg.WorkerPool.Size)
	orch := orchestrator.New(bus, store, registry, modeMgr, pool)
	projects := project.NewRegistry()
	broadcaster := httpapi.NewBroadcaster(bus)
	server := httpapi.NewServer(orch, modeMgr, broadcaster, projects, store, providers)

	addr := fmt.Sprintf(":%d", portFromEnv(8080))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", logging.Fields{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", logging.Fields{"error": err.Error()})
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", logging.Fields{"error": err.Error()})
	}
}

func buildStore(cfg *config.Config) (eventstore.Store, error) {
	if os.Getenv("ORCH_STORE") != "postgres" {
		return eventstore.NewInMemoryStore(), nil
	}
	return eventstore.NewPostgresStore(eventstore.PostgresConfig{
		Host: cfg.Database.Host, Port: cfg.Database.Port, Database: cfg.Database.Database,
		User: cfg.Database.User, Password: cfg.Database.Password, SSLMode: cfg.Database.SSLMode,
	})
}

func buildProviders(cfg *config.Config) *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register("ollama", provider.NewOllamaProvider(envOr("OLLAMA_URL", "http://localhost:11434"), nil))
	registry.Register("llamacpp", provider.NewLlamaCppProvider(envOr("LLAMACPP_URL", "http://localhost:8081"), nil))

	if clientID := os.Getenv("CLOUD_CLIENT_ID"); clientID != "" {
		registry.Register("cloud", provider.NewCloudProvider(
			envOr("CLOUD_API_URL", "https://api.cloud-provider.example/v1"),
			os.Getenv("CLOUD_TOKEN_URL"),
			clientID,
			os.Getenv("CLOUD_CLIENT_SECRET"),
			nil,
		))
	}
	return registry
}

func allAgentTypes() []agent.Type {
	return []agent.Type{
		agent.TypeConcept, agent.TypeArchitect, agent.TypeImplement, agent.TypeTest,
		agent.TypeReview, agent.TypeOptimize, agent.TypeDocs, agent.TypeDeploy,
		agent.TypeSecurity, agent.TypeRefactor, agent.TypeDebug, agent.TypeMigrate,
	}
}

func portFromEnv(def int) int {
	v := os.Getenv("ORCH_PORT")
	if v == "" {
		return def
	}
	var port int
	if _, err := fmt.Sscanf(v, "%d", &port); err != nil || port <= 0 {
		return def
	}
	return port
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
