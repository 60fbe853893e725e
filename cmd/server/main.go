package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rideguard/internal/config"
	"rideguard/internal/escalation"
	"rideguard/internal/handlers"
	"rideguard/internal/middleware"
	"rideguard/internal/models"
	"rideguard/internal/notifications"
	"rideguard/internal/repositories/mongodb"
	"rideguard/internal/services"
	"rideguard/pkg/cache"
	"rideguard/pkg/database"
	"rideguard/pkg/email"
	"rideguard/pkg/logger"
	"rideguard/pkg/maps"
	"rideguard/pkg/push"
	"rideguard/pkg/sms"
	"rideguard/pkg/storage"
	"rideguard/pkg/websocket"
	"rideguard/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: "json",
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Database
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer db.Close()

	if err := database.NewMigrator(db.Database).Up(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	// Cache is best-effort: incidents still work without Redis
	var cacheSvc mongodb.CacheService
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
	} else {
		cacheSvc = redisCache
		defer redisCache.Close()
	}

	emergencyRepo := mongodb.NewEmergencyRepository(db.Database, cacheSvc)
	contactRepo := mongodb.NewContactRepository(db.Database, cacheSvc)

	// Delivery channels
	smsProvider := buildSMSProvider(cfg, log)
	pushProvider := buildPushProvider(cfg, log)
	emailSender := buildEmailSender(cfg)
	geocoder := buildGeocoder(cfg, log)
	storageProvider := buildStorageProvider(cfg, log)

	wsHandler := websocket.NewHandler()

	gateway := notifications.NewMultiChannelGateway(smsProvider, pushProvider, emailSender, wsHandler)
	directory := notifications.NewStaticDirectory(
		contactRepo,
		staticRecipients(cfg.Escalation.AdminPhones, cfg.Escalation.AdminEmails, "Safety admin"),
		staticRecipients(cfg.Escalation.AuthorityPhones, cfg.Escalation.AuthorityEmails, "Authority desk"),
		staticRecipients(cfg.Escalation.DispatchPhones, nil, "Dispatch desk"),
	)

	var dispatchClient notifications.DispatchClient
	if cfg.Escalation.DispatchEndpoint != "" {
		dispatchClient = notifications.NewHTTPDispatchClient(cfg.Escalation.DispatchEndpoint)
	} else {
		dispatchClient = &notifications.LoggingDispatchClient{Logger: log}
	}

	dispatcher := notifications.NewDispatcher(emergencyRepo, directory, gateway, dispatchClient, geocoder, log)

	policy := escalation.DefaultPolicy()
	for i, deadline := range cfg.Escalation.Deadlines() {
		if i < len(policy.Levels) {
			policy.Levels[i].Deadline = deadline
		}
	}

	scheduler, err := escalation.NewScheduler(emergencyRepo, policy, dispatcher, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to build escalation scheduler")
	}

	scorer := escalation.NewScorer(emergencyRepo)

	emergencyService := services.NewEmergencyService(emergencyRepo, scheduler, scorer, storageProvider, wsHandler, log)

	// Re-arm monitors for incidents that were open when the process last stopped
	recovered, err := scheduler.RecoverActive(context.Background())
	if err != nil {
		log.WithError(err).Error("Failed to recover active emergencies")
	} else if recovered > 0 {
		log.WithField("count", recovered).Info("Resumed escalation monitoring for open emergencies")
	}

	emergencyHandler := handlers.NewEmergencyHandler(emergencyService)
	contactHandler := handlers.NewContactHandler(contactRepo)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(log))

	v1 := router.Group("/api/v1")
	{
		routes.SetupEmergencyRoutes(v1, emergencyHandler, cfg.Security.JWTSecret)
		routes.SetupContactRoutes(v1, contactHandler, cfg.Security.JWTSecret)
	}

	router.GET("/ws", middleware.AuthRequired(cfg.Security.JWTSecret), wsHandler.HandleWebSocket)

	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "up"
		if err := db.Ping(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "down"
		}
		c.JSON(status, gin.H{
			"status":   "healthy",
			"version":  cfg.App.Version,
			"database": dbStatus,
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.App.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Forced server shutdown")
	}
}

func buildSMSProvider(cfg *config.Config, log *logger.Logger) sms.SMSProvider {
	switch cfg.SMS.Provider {
	case "sns":
		provider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			log.WithError(err).Warn("SNS unavailable, SMS channel disabled")
			return nil
		}
		return provider
	default:
		if cfg.SMS.Twilio.AccountSID == "" {
			log.Warn("Twilio not configured, SMS channel disabled")
			return nil
		}
		return sms.NewTwilioProvider(cfg.SMS.Twilio.AccountSID, cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber)
	}
}

func buildPushProvider(cfg *config.Config, log *logger.Logger) push.PushProvider {
	switch cfg.Push.Provider {
	case "apns":
		if cfg.Push.APNS.KeyFile == "" {
			log.Warn("APNS not configured, push channel disabled")
			return nil
		}
		provider, err := push.NewAPNSProvider(
			cfg.Push.APNS.KeyFile,
			cfg.Push.APNS.KeyID,
			cfg.Push.APNS.TeamID,
			cfg.Push.APNS.BundleID,
			cfg.Push.APNS.Production,
		)
		if err != nil {
			log.WithError(err).Warn("APNS unavailable, push channel disabled")
			return nil
		}
		return provider
	default:
		if cfg.Push.FCM.Credentials == "" {
			log.Warn("FCM not configured, push channel disabled")
			return nil
		}
		provider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			log.WithError(err).Warn("FCM unavailable, push channel disabled")
			return nil
		}
		return provider
	}
}

func buildEmailSender(cfg *config.Config) email.Sender {
	if cfg.SMTP.Username == "" {
		return nil
	}
	return email.NewSMTPSender(&email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.FromEmail,
		FromName: cfg.SMTP.FromName,
	})
}

func buildGeocoder(cfg *config.Config, log *logger.Logger) maps.Geocoder {
	switch cfg.Maps.Provider {
	case "mapbox":
		if cfg.Maps.Mapbox.AccessToken == "" {
			return nil
		}
		return maps.NewMapboxProvider(cfg.Maps.Mapbox.AccessToken)
	default:
		if cfg.Maps.GoogleMaps.APIKey == "" {
			return nil
		}
		provider, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
		if err != nil {
			log.WithError(err).Warn("Google Maps unavailable, alerts will use raw coordinates")
			return nil
		}
		return provider
	}
}

func buildStorageProvider(cfg *config.Config, log *logger.Logger) storage.StorageProvider {
	switch cfg.Storage.Provider {
	case "s3":
		provider, err := storage.NewAWSS3Storage(cfg.Storage.AWS.Region, cfg.Storage.AWS.Bucket, cfg.Storage.AWS.CDNDomain)
		if err != nil {
			log.WithError(err).Warn("S3 unavailable, media evidence disabled")
			return nil
		}
		return provider
	case "gcp":
		provider, err := storage.NewGCPStorage(cfg.Storage.GCP.ProjectID, cfg.Storage.GCP.Bucket, cfg.Storage.GCP.CredentialsFile, cfg.Storage.GCP.CDNDomain)
		if err != nil {
			log.WithError(err).Warn("GCP storage unavailable, media evidence disabled")
			return nil
		}
		return provider
	default:
		provider, err := storage.NewLocalStorage(cfg.Storage.Local.BasePath, cfg.Storage.Local.BaseURL)
		if err != nil {
			log.WithError(err).Warn("Local storage unavailable, media evidence disabled")
			return nil
		}
		return provider
	}
}

func staticRecipients(phones, emails []string, name string) []notifications.Recipient {
	var recipients []notifications.Recipient
	for _, phone := range phones {
		if phone == "" {
			continue
		}
		recipients = append(recipients, notifications.Recipient{
			Name:    name,
			Channel: models.NotificationChannelSMS,
			Address: phone,
		})
	}
	for _, addr := range emails {
		if addr == "" {
			continue
		}
		recipients = append(recipients, notifications.Recipient{
			Name:    name,
			Channel: models.NotificationChannelEmail,
			Address: addr,
		})
	}
	return recipients
}
