package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/mirado-ravelo/safidy/archive"
	"github.com/mirado-ravelo/safidy/cliparse"
	"github.com/mirado-ravelo/safidy/db"
	"github.com/mirado-ravelo/safidy/facematch"
	"github.com/mirado-ravelo/safidy/notify"
	"github.com/mirado-ravelo/safidy/router"
	"github.com/mirado-ravelo/safidy/tokenstore"
)

func main() {
	var err error

	// Optional .env file for local development
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	driver := "postgres"
	if cfg.DatabaseType == "sqlite" {
		driver = "sqlite"
	}
	dbConn, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()
	if cfg.DatabaseType == "sqlite" {
		// modernc's driver needs a single writer
		dbConn.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	// Handshake-token store: Redis when configured, in-process otherwise
	var tokens tokenstore.Store
	if cfg.RedisURI != "" {
		opts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			slog.Error("invalid Redis URI", "error", err)
			os.Exit(1)
		}
		tokens = tokenstore.NewRedis(redis.NewClient(opts), tokenstore.DefaultTTL)
		slog.Info("Handshake tokens stored in Redis")
	} else {
		mem := tokenstore.NewMemory(tokenstore.DefaultTTL)
		go func() {
			for range time.Tick(time.Minute) {
				mem.Sweep()
			}
		}()
		tokens = mem
	}

	// OTP delivery: SMTP relay when configured, log sender otherwise
	var mailer notify.Sender
	if cfg.SMTPAddr != "" {
		mailer = notify.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom, 10*time.Second)
	} else {
		slog.Warn("No SMTP relay configured; OTPs will be logged")
		mailer = notify.LogSender{}
	}

	if cfg.FaceAPIURL == "" {
		slog.Warn("No face comparison service configured; facial step will fail")
	}

	deps := router.Deps{
		Tokens:   tokens,
		Faces:    facematch.NewHTTPComparer(cfg.FaceAPIURL, 10*time.Second),
		Mailer:   mailer,
		Renderer: archive.TextRenderer{},
	}

	// Create router
	mux := router.NewRouter(dbConn, cfg, deps)

	// Create server
	server := http.Server{
		Handler: mux,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
