package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/analyzers"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/assistant"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/conversation"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/orchestrator"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/repo"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/skills"
	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/workflow"
	"github.com/Chative-core-poc-v1/assistant-core/internal/core"
	"github.com/Chative-core-poc-v1/assistant-core/internal/metrics"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
	pkgredis "github.com/Chative-core-poc-v1/assistant-core/pkg/redis"
)

// AppConfig defines all configurable parameters for the assistant demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	UserID      string `envconfig:"DEMO_USER_ID" default:"demo-user"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Analyzer     model.AnalyzerModelConfig
	Orchestrator model.OrchestratorConfig
	Conversation model.ConversationConfig
	Workflow     model.WorkflowConfig
}

var demoUtterances = []string{
	"Hi, I want to stop copying things out of my inbox by hand.",
	"Whenever I get a new email, pull out the action items and add them as tasks in Notion.",
	"Which Slack actions can I use?",
	"Also set up a call with Dana tomorrow at 10.",
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("failed to process environment config")
	}

	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("assistant demo failed")
	}
}

func run(ctx context.Context, cfg AppConfig) error {
	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logx.Info().Msg("connected to redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	srv := serveMetrics(cfg.MetricsAddr, reg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	components := repo.NewRedisComponentRegistry(rdb)
	if cfg.Workflow.SeedCatalog {
		if err := components.Register(ctx, workflow.DefaultCatalog()...); err != nil {
			return err
		}
	}

	skillRegistry, err := skills.NewRegistry(ctx, skills.CatalogTools(components)...)
	if err != nil {
		return err
	}

	chatModel, err := analyzers.NewGeminiChatModel(ctx, analyzers.GeminiConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Analyzer,
	})
	if err != nil {
		return err
	}

	roster, err := analyzers.NewRoster(ctx, cfg.Orchestrator.Roster, chatModel,
		analyzers.WithModelName(cfg.Analyzer.Model),
		analyzers.WithContextTurns(cfg.Conversation.ShortTermTurns),
		analyzers.WithSkills(skillRegistry.IDs()...),
	)
	if err != nil {
		return err
	}
	workers := make([]orchestrator.Analyzer, len(roster))
	for i, a := range roster {
		workers[i] = a
	}

	orch, err := orchestrator.New(workers,
		orchestrator.NewWeightedSynthesizer(cfg.Orchestrator.Weights, cfg.Orchestrator.MinConfidence),
		orchestrator.WithAnalyzerTimeout(cfg.Orchestrator.AnalyzerTimeout),
		orchestrator.WithSkills(skillRegistry),
		orchestrator.WithWorkflowCompiler(workflow.NewCompiler(components,
			workflow.WithLayoutStep(cfg.Workflow.LayoutStep),
			workflow.WithMetrics(m),
		)),
		orchestrator.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	// bot is assigned before Activate, so the idle timer cannot fire earlier
	var bot *assistant.Assistant
	timer := conversation.NewRealTimer()
	defer timer.Stop()
	sm := conversation.NewStateMachine(
		conversation.WithTimer(timer),
		conversation.WithIdleTimeout(cfg.Conversation.IdleTimeout),
		conversation.WithMaxTurns(cfg.Conversation.MaxTurns),
		conversation.WithMetrics(m),
		conversation.WithDeactivateHook(func(reason string) {
			if reason == conversation.ReasonIdleTimeout {
				bot.OnDeactivate(ctx, reason)
			}
		}),
	)

	bot = assistant.New(sm, orch,
		assistant.WithGraphRepository(repo.NewRedisGraphRepository(rdb, cfg.Workflow.GraphTTL)),
		assistant.WithSnapshotRepository(repo.NewRedisSnapshotRepository(rdb, cfg.Conversation.SnapshotTTL)),
		assistant.WithUserID(cfg.UserID),
		assistant.WithContextTurns(cfg.Conversation.ShortTermTurns),
	)

	res := bot.Activate(ctx)
	logx.Info().Str("conversation_id", sm.ID()).Str("status", string(res.Status)).Strs("roster", orch.Roster()).Msg("conversation started")

	for i, text := range demoUtterances {
		reply, err := bot.HandleUtterance(ctx, text)
		if err != nil {
			return err
		}
		logx.Info().
			Int("turn", i+1).
			Str("user", text).
			Str("reply", reply.Message).
			Bool("declined", reply.Declined).
			Str("workflow_id", reply.WorkflowID).
			Msg("turn complete")
	}

	bot.Deactivate(ctx, assistant.ReasonUser)
	return nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
