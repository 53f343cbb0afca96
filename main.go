package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/kminds/kuet-auth-bot/config"
	"github.com/kminds/kuet-auth-bot/controllers"
	"github.com/kminds/kuet-auth-bot/middleware"
	"github.com/kminds/kuet-auth-bot/repositories"
	"github.com/kminds/kuet-auth-bot/routes"
	"github.com/kminds/kuet-auth-bot/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	client, err := config.ConnectDB(cfg.Mongo, logger)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	db := client.Database(cfg.Mongo.DBName)
	if err := config.SetupCollections(ctx, db, cfg.OTP.Cooldown()); err != nil {
		logger.Fatal("failed to set up collections", zap.Error(err))
	}

	store, closeStore, err := newOTPStore(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("failed to set up otp store", zap.String("store", cfg.OTP.Store), zap.Error(err))
	}

	emailService, notifierStatus := services.NewEmailService(cfg.Email, cfg.OTP.ExpiresIn(), logger)
	logger.Info("email notifier",
		zap.Bool("enabled", notifierStatus.Enabled),
		zap.String("reason", notifierStatus.Reason),
	)
	if cfg.OTP.MaxAttempts > 0 {
		logger.Info("OTP_MAX_ATTEMPTS is set but not enforced", zap.Int("max_attempts", cfg.OTP.MaxAttempts))
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	// Initialize repositories and services
	userRepo := repositories.NewUserRepository(db)
	otpService := services.NewOTPService(store, emailService, cfg.OTP, logger)
	discordService := services.NewDiscordService(session, cfg.Guild.VerificationLogsChannelID, logger)

	// Initialize controllers
	authController := controllers.NewAuthController(otpService, userRepo, discordService, cfg.OTP, cfg.Guild, logger)

	policies := config.AuthPermissions(cfg.Guild)
	if cfg.PermissionsFile != "" {
		policies, err = config.LoadPermissionsFile(cfg.PermissionsFile, policies)
		if err != nil {
			logger.Fatal("failed to load permissions file", zap.String("path", cfg.PermissionsFile), zap.Error(err))
		}
	}

	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Close()

	router := routes.RegisterCommands(authController, policies, rateLimiter, logger)

	session.AddHandler(routes.GatewayHandler(router, logger))
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("connected to Discord", zap.String("user", r.User.String()), zap.Int("guilds", len(r.Guilds)))
	})
	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord session", zap.Error(err))
	}

	if _, err := session.ApplicationCommandBulkOverwrite(cfg.Discord.AppID, cfg.Discord.GuildID, routes.CommandDefinitions(cfg.OTP.Length)); err != nil {
		logger.Fatal("failed to register commands", zap.Error(err))
	}
	logger.Info("commands registered", zap.String("guild_id", cfg.Discord.GuildID))

	var publicKey ed25519.PublicKey
	if cfg.Discord.PublicKey != "" {
		publicKey, err = routes.ParsePublicKey(cfg.Discord.PublicKey)
		if err != nil {
			logger.Fatal("invalid DISCORD_PUBLIC_KEY", zap.Error(err))
		}
	}

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())

	ping := func(ctx context.Context) error { return client.Ping(ctx, nil) }
	httpHandler := routes.NewHTTPHandler(router, session, publicKey, ping, notifierStatus, logger)
	routes.RegisterHTTPRoutes(e, httpHandler)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	httpHandler.Wait()
	if err := session.Close(); err != nil {
		logger.Warn("discord session close", zap.Error(err))
	}
	closeStore()
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect", zap.Error(err))
	}
}

// newOTPStore builds the backend selected by OTP_STORE. The returned func
// releases whatever the store holds.
func newOTPStore(ctx context.Context, cfg *config.Config, db *mongo.Database, logger *zap.Logger) (services.OTPStore, func(), error) {
	switch cfg.OTP.Store {
	case "redis":
		rc, err := config.ConnectRedis(cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		closeRedis := func() {
			if err := rc.Close(); err != nil {
				logger.Warn("redis close", zap.Error(err))
			}
		}
		return repositories.NewRedisOTPRepository(rc, cfg.OTP.Cooldown()), closeRedis, nil

	case "memory":
		logger.Warn("using in-memory otp store, codes are lost on restart")
		mem := repositories.NewMemoryOTPRepository(cfg.OTP.Cooldown())
		go mem.RunSweeper(ctx, time.Minute)
		return mem, func() {}, nil

	default:
		return repositories.NewOTPRepository(db), func() {}, nil
	}
}
