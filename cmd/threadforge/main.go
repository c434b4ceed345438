package main

import (
	"log"
	"net"
	"net/http"

	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/config"
	"github.com/threadforge/threadforge/internal/db"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/imagegen"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/server"
	"github.com/threadforge/threadforge/internal/session"
	"github.com/threadforge/threadforge/internal/social"
	"github.com/threadforge/threadforge/internal/social/sidechannel"
)

func main() {
	cfg := config.Load()

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.SessionSecret == "" {
		log.Println("⚠️ SESSION_SECRET not set, sessions will not survive restarts")
	}

	billingClient := billing.NewClient(billing.Options{
		BaseURL:     cfg.BillingAPIBase,
		SecretKey:   cfg.BillingSecret,
		ProCents:    cfg.ProPriceCents,
		VisualCents: cfg.VisualPriceCents,
		Timeout:     cfg.BillingTimeout,
		CacheTTL:    cfg.TierCacheTTL,
	})
	gate := quota.NewGate(database)
	generator := generate.NewClient(cfg.GenAPIBase, cfg.GenAPIKey, cfg.GenModels, 0)
	images := imagegen.NewClient(cfg.ImageAPIBase, cfg.ImageAPIKey, 0)
	store := analytics.NewStore(database)

	oauthStore := sidechannel.NewStore(database, sidechannel.DefaultTTL)
	callbackURL := cfg.PublicBaseURL + "/auth/x/callback"
	sessions := session.NewManager(cfg.SessionSecret, func() *social.Connector {
		return social.NewConnector(social.Options{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    callbackURL,
			Store:          oauthStore,
		})
	})

	router := server.NewRouter(server.Deps{
		Sessions:             sessions,
		Billing:              billingClient,
		Gate:                 gate,
		Generator:            generator,
		Images:               images,
		Analytics:            store,
		FreeDailyLimit:       cfg.FreeDailyLimit,
		CarouselMonthlyLimit: cfg.CarouselMonthlyLimit,
	})

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	log.Printf("🚀 ThreadForge listening on http://%s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
