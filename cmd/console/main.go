package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/rgeddes/inkbound/internal/config"
	"github.com/rgeddes/inkbound/internal/events"
	"github.com/rgeddes/inkbound/internal/llm"
	"github.com/rgeddes/inkbound/internal/logger"
	"github.com/rgeddes/inkbound/internal/storage"
	"github.com/rgeddes/inkbound/pkg/book"
	"github.com/rgeddes/inkbound/pkg/effects"
	"github.com/rgeddes/inkbound/pkg/player"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg)

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "INKBOUND_API_KEY is not set")
		os.Exit(1)
	}

	sink := newUISink()

	client := llm.NewClient(cfg.APIBaseURL, llm.StaticCredential(cfg.APIKey),
		llm.WithModels(cfg.TextModel, cfg.ImageModel),
		llm.WithTimeout(cfg.CallTimeout),
		llm.WithNotifier(sink.notifyStatus),
		llm.WithLogger(log),
	)
	defer client.Close()

	deps := book.Deps{
		Generator: client,
		Sink:      sink,
		Events:    events.Nop{},
		Logger:    log,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid REDIS_URL: %v\n", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		deps.Events = events.NewPublisher(rdb, log)
		deps.Store = storage.NewSessionStore(rdb, cfg.PlayerID, log)
	}

	state := player.New()
	deps.Applier = effects.NewApplier(state, deps.Events, log)

	shelf := book.NewShelf(cfg.PlayerID, deps)

	p := tea.NewProgram(NewConsoleUI(shelf, state, client, sink),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
