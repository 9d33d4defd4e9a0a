package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/famlink/famlink/internal/api"
	"github.com/famlink/famlink/internal/auth"
	"github.com/famlink/famlink/internal/config"
	"github.com/famlink/famlink/internal/database"
	"github.com/famlink/famlink/internal/notification"
	"github.com/famlink/famlink/internal/push"
	"github.com/famlink/famlink/internal/reminder"
	"github.com/famlink/famlink/internal/server"
	"github.com/famlink/famlink/internal/stats"
	_ "github.com/lib/pq"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr             string
	dsn              string
	signingKey       string
	allowedOrigins   stringSliceFlag
	migrationsURL    string
	fcmCredentials   string
	reminderInterval time.Duration
	expiryThreshold  int
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&migrationsURL, "migrations", "file://migrations", "migration source URL")
	flag.StringVar(&fcmCredentials, "fcm-credentials", "", "path to FCM service account credentials (push disabled if empty)")
	flag.DurationVar(&reminderInterval, "reminder-interval", config.DefaultReminderInterval, "how often to scan for expiring inventory items")
	flag.IntVar(&expiryThreshold, "expiry-threshold", config.DefaultExpiryThreshold, "days before expiry to start reminding")
	flag.Parse()

	logger := log.New(os.Stderr, "[famlink] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, fcmCredentials, reminderInterval, expiryThreshold)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgFamLinkRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(migrationsURL); err != nil {
		logger.Fatal("migrate:", err)
	}

	statsMux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(statsMux)

	eventServer, err := server.NewEventServer(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new event server:", err)
	}

	store := notification.NewStore(dbConn, eventServer, statsUpdater, logger)

	var provider push.Provider
	if cfg.FCMCredentialsFile != "" {
		fcmProvider, err := push.NewFCMProvider(context.Background(), cfg.FCMCredentialsFile)
		if err != nil {
			logger.Fatal("fcm:", err)
		}
		provider = fcmProvider
	} else {
		logger.Println("no FCM credentials configured, push delivery disabled")
		provider = push.NopProvider{}
	}
	dispatcher := push.NewDispatcher(provider, dbConn, statsUpdater, logger)

	eventServer.RegisterGateway(server.NewChatGateway(eventServer, store, dispatcher, logger))
	eventServer.RegisterGateway(server.NewMenuGateway(eventServer, store, dispatcher, logger))
	eventServer.RegisterGateway(server.NewRefrigeratorGateway(eventServer, store, dispatcher, logger))
	eventServer.RegisterGateway(server.NewShoppingGateway(eventServer, store, dispatcher, logger))
	eventServer.RegisterGateway(server.NewNotificationsGateway(eventServer, store, dispatcher, logger))

	authenticator := auth.NewJWTAuthenticator(cfg.SigningKey)

	srv := api.NewFamLinkApp(logger, eventServer, dbConn, store, authenticator, statsMux, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go eventServer.Run()

	scheduler := reminder.NewScheduler(dbConn, store, dispatcher, eventServer, statsUpdater, logger,
		cfg.ReminderInterval, cfg.ExpiryThresholdDays)
	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	scheduler.Stop()

	logger.Println("shutting down event server...")
	eventServer.Shutdown()

	logger.Println("shutdown complete")
}
