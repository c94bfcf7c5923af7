package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"order-agent/handler"
	"order-agent/internal/integrations/llm"
	"order-agent/internal/integrations/paramstore"
	"order-agent/internal/integrations/provider"
	"order-agent/internal/integrations/transport"
	"order-agent/internal/order"
	"order-agent/internal/pipeline"
	"order-agent/internal/repository"
	"order-agent/internal/tenant"
	"order-agent/internal/usecase"
)

func main() {
	ctx := context.Background()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	registryPath := mustEnv("TENANT_REGISTRY")
	gatewayURL := mustEnv("GATEWAY_URL")
	gatewayTokenParam := os.Getenv("GATEWAY_TOKEN_PARAM")
	listenAddr := envStr("LISTEN_ADDR", ":8080")
	debounce := time.Duration(envInt("DEBOUNCE_SECONDS", 8)) * time.Second
	followUp := time.Duration(envInt("FOLLOWUP_MINUTES", 5)) * time.Minute
	autoCancel := time.Duration(envInt("AUTOCANCEL_MINUTES", 30)) * time.Minute

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal(log, "failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal(log, "failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		fatal(log, "failed to create state store", err)
	}
	sender, err := transport.NewClient(gatewayURL, ssmClient, gatewayTokenParam)
	if err != nil {
		fatal(log, "failed to create gateway client", err)
	}
	llmClient, err := llm.NewClient(ssmClient, paramPrefix)
	if err != nil {
		fatal(log, "failed to create llm client", err)
	}

	// ---- Tenants ----
	registry, err := tenant.Load(registryPath)
	if err != nil {
		fatal(log, "failed to load tenant registry", err)
	}
	tenants := make(map[string]*usecase.TenantRuntime)
	for _, id := range registry.IDs() {
		cfgT, _ := registry.Get(id)
		rt, err := buildTenantRuntime(cfgT, ssmClient, log)
		if err != nil {
			fatal(log, "failed to wire tenant "+id, err)
		}
		tenants[id] = rt
	}

	// ---- Services ----
	turns, err := usecase.NewTurnService(store, sender, tenants, log,
		usecase.WithClassifier(llmClient),
		usecase.WithExtractor(llmClient),
		usecase.WithReplyGenerator(llmClient),
	)
	if err != nil {
		fatal(log, "failed to create turn service", err)
	}

	buffer := pipeline.NewBuffer(turns, debounce, log)
	timers := pipeline.NewTimers(turns, buffer, followUp, autoCancel)
	turns.SetTimers(timers)
	dedupe := pipeline.NewDeduper(pipeline.DedupeTTL)

	h, err := handler.New(registry, dedupe, buffer, log)
	if err != nil {
		fatal(log, "failed to create handler", err)
	}

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", listenAddr, "tenants", len(tenants))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server failed", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	buffer.Close()
	timers.Close()
	dedupe.Close()
}

// buildTenantRuntime wires one tenant's provider clients and committer.
func buildTenantRuntime(cfg tenant.Tenant, ssmClient *paramstore.Client, log *slog.Logger) (*usecase.TenantRuntime, error) {
	primary, err := provider.NewClient(cfg.ProviderURL, ssmClient, cfg.ProviderTokenParam)
	if err != nil {
		return nil, err
	}
	var secondary order.Provider
	if cfg.FallbackProviderURL != "" {
		fallback, err := provider.NewClient(cfg.FallbackProviderURL, ssmClient, cfg.ProviderTokenParam)
		if err != nil {
			return nil, err
		}
		secondary = fallback
	}
	committer, err := order.NewCommitter(primary, secondary, primary, log)
	if err != nil {
		return nil, err
	}
	return &usecase.TenantRuntime{
		Config:    cfg,
		Committer: committer,
		Catalog:   primary,
	}, nil
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
