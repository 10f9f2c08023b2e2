// Package app wires application services to infrastructure adapters.
package app

import (
	"context"
	"time"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/infrastructure/ai"
	"github.com/doeshing/risklens/internal/infrastructure/analysis"
	"github.com/doeshing/risklens/internal/infrastructure/cache"
	"github.com/doeshing/risklens/internal/infrastructure/chatlog"
	"github.com/doeshing/risklens/internal/infrastructure/config"
	"github.com/doeshing/risklens/internal/infrastructure/portfolio"
	"github.com/doeshing/risklens/internal/infrastructure/session"
	"github.com/doeshing/risklens/internal/infrastructure/triage"
	"github.com/doeshing/risklens/internal/pkg/logger"
	"github.com/doeshing/risklens/internal/ports"
	"github.com/doeshing/risklens/internal/services"
)

// Container wires up application services with infrastructure adapters.
type Container struct {
	ChatService    *services.ChatService
	DoctorService  *services.DoctorService
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Portfolio      ports.PortfolioStore
	ChatLog        ports.ChatLogStore
	Cache          *cache.FileCache
	Guests         ports.GuestRegistry
	Config         domain.Config
	Logger         ports.Logger
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, verbose bool) (*Container, error) {
	cfgLoader := config.NewFileLoader("")
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New(verbose)

	durable, err := portfolio.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	guestHoldings := portfolio.NewMemoryStore()
	store := portfolio.NewSplitStore(durable, guestHoldings)

	chatLog := chatlog.NewSQLiteStore("")
	replyCache := cache.NewFileCache("")
	engine, err := triage.NewEngine(cfg.Triage.RulesFile)
	if err != nil {
		return nil, err
	}
	analysisClient := analysis.NewClient(cfg.Analysis.BaseURL, time.Duration(cfg.Analysis.TimeoutSeconds)*time.Second)
	limiter := session.NewRateLimiter(cfg.Sessions.RatePerMinute, cfg.Sessions.RateBurst)

	guests := session.NewManager(session.Config{
		TTL: time.Duration(cfg.Sessions.GuestTTLMinutes) * time.Minute,
		OnExpire: func(id string) {
			guestHoldings.DropSession(domain.SessionRef{ID: id, Guest: true})
		},
	})

	chatService := &services.ChatService{
		ConfigProvider:  cfgLoader,
		Triage:          engine,
		Portfolio:       store,
		ProviderFactory: ai.NewFactory(),
		Analysis:        analysisClient,
		Cache:           replyCache,
		ChatLog:         chatLog,
		Limiter:         limiter,
		Logger:          log,
	}

	doctorService := &services.DoctorService{
		ConfigProvider: cfgLoader,
		Analysis:       analysisClient,
		Triage:         engine,
		Guests:         guests,
	}

	return &Container{
		ChatService:    chatService,
		DoctorService:  doctorService,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Portfolio:      store,
		ChatLog:        chatLog,
		Cache:          replyCache,
		Guests:         guests,
		Config:         cfg,
		Logger:         log,
	}, nil
}
