package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/seqchat/seqchat/internal/analysis"
	"github.com/seqchat/seqchat/internal/config"
	"github.com/seqchat/seqchat/internal/gateway"
	"github.com/seqchat/seqchat/internal/httpapi"
	"github.com/seqchat/seqchat/internal/llm"
	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/session"
)

const version = "0.1.0"

var cli struct {
	Config  string           `help:"Path to the YAML config file." type:"path"`
	Listen  string           `help:"Override the listen address."`
	Debug   bool             `help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("seqchat"),
		kong.Description("Conversational gateway for single-cell analysis chat."),
		kong.Vars{"version": "seqchat " + version},
	)

	level := LevelInfo
	if cli.Debug {
		level = LevelDebug
	}
	Init(&Config{Level: level, ShowCaller: cli.Debug})

	L_info("seqchat %s starting", version)

	configPath := cli.Config
	if configPath == "" {
		configPath = os.Getenv("SEQCHAT_CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		L_fatal("failed to load config: %v", err)
	}
	if cli.Listen != "" {
		cfg.Server.Listen = cli.Listen
	}

	registry := llm.NewRegistry(llm.RegistryConfig{
		OllamaURL:          cfg.Ollama.URL,
		OllamaDefaultModel: cfg.Ollama.DefaultModel,
		DeepseekBaseURL:    cfg.Cloud.DeepseekBaseURL,
	})
	factory := llm.NewFactory(registry, time.Duration(cfg.LLM.RequestTimeoutSeconds)*time.Second)
	prober := llm.NewProber(registry, time.Duration(cfg.LLM.ProbeTimeoutSeconds)*time.Second)

	uploads, err := httpapi.NewUploadStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeMB)
	if err != nil {
		L_fatal("failed to prepare upload storage: %v", err)
	}

	analyzer := analysis.NewClient(
		cfg.Analysis.URL,
		time.Duration(cfg.Analysis.TimeoutSeconds)*time.Second,
		analysis.RetryPolicy{
			MaxAttempts: cfg.Analysis.MaxRetries,
			Delay:       time.Duration(cfg.Analysis.RetryDelaySeconds) * time.Second,
		},
	)

	router := gateway.NewRouter(
		session.NewMemoryStore(),
		factory,
		analyzer,
		cfg.LLM.ContextWindow,
		cfg.Server.DevMode,
	)

	server := httpapi.NewServer(&httpapi.ServerConfig{
		Listen:      cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, router, registry, prober, uploads)

	if err := server.Start(); err != nil {
		L_fatal("failed to start server: %v", err)
	}
	L_info("seqchat ready", "listen", cfg.Server.Listen, "defaultModel", registry.Default().ID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	L_info("shutting down", "signal", sig.String())
	if err := server.Stop(); err != nil {
		L_error("shutdown error", "error", err)
	}
}
