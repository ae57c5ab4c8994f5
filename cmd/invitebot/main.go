package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/effektcommunity/invitebot/internal/config"
	"github.com/effektcommunity/invitebot/internal/discord"
	"github.com/effektcommunity/invitebot/internal/handlers/middleware"
	"github.com/effektcommunity/invitebot/internal/handlers/web"
	"github.com/effektcommunity/invitebot/internal/invites"
	"github.com/effektcommunity/invitebot/internal/sanity"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// cron schedule
	scheduler, _ := gocron.NewScheduler()
	scheduler.Start()

	// Connect to the chat platform
	session, err := discord.NewSession(cfg.BotSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}

	controller := invites.NewController(discord.NewGateway(session), cfg.GuildID, cfg.ChannelID, cfg.RoleID)
	discord.Bind(session, controller)

	if err := session.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open Discord gateway connection")
	}
	defer session.Close()

	invites.RegisterCacheRefresher(scheduler, controller, time.Duration(cfg.CacheRefreshMinutes)*time.Minute)

	sanityClient := sanity.New(cfg.Sanity.ProjectID, cfg.Sanity.Dataset, cfg.Sanity.Token)

	// Set up Gin router
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.Default())
	router.Use(middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst))

	handlers := web.New(controller, sanityClient, cfg.RequireEmail, cfg.DeleteInvitePassword)
	handlers.RegisterHandlers(router.Group("/"))

	// Start server
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	// Run our server in a goroutine so that it doesn't block.
	go func() {
		log.Printf("start server at %q", srv.Addr)
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	c := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+/) will not be caught.
	signal.Notify(c, os.Interrupt)

	// Block until we receive our signal.
	<-c

	// Create a deadline to wait for.
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	// Doesn't block if no connections, but will otherwise wait
	// until the timeout deadline.
	srv.Shutdown(ctx)

	log.Info().Msg("shutting down")
	os.Exit(0)
}
