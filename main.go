package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"guiatv/api"
	"guiatv/config"
	"guiatv/handlers"
	"guiatv/internal/database"
	"guiatv/services/guide"
	"guiatv/services/hub"
	"guiatv/services/relay"
	"guiatv/services/sources"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("guiatv backend starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("GUIATV_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Open durable storage, degrading from sqlite to a file store to
	// memory-only. A dead store never prevents startup.
	store := openStore(settings.Database)
	defer store.Close()

	// Load the external channel mapping table. Missing table means an empty
	// guide until the file appears, not a crash.
	table, err := sources.LoadTable(settings.Sources.MappingFile)
	if err != nil {
		log.Printf("[main] channel mapping table unavailable: %v", err)
		table = sources.Table{}
	} else {
		log.Printf("[main] loaded channel mapping table: %d channels", len(table))
	}

	resolver := sources.NewResolver(table)
	fetcher := relay.NewFetcher(settings.Relays, nil)
	updateHub := hub.New()
	guideService := guide.NewService(settings.Guide, settings.Sources, resolver, fetcher, store, updateHub)

	if settings.Guide.Enabled {
		if err := guideService.Start(context.Background()); err != nil {
			log.Printf("[main] failed to start guide scheduler: %v", err)
		}
	} else {
		log.Println("[main] guide refresh disabled in settings")
	}

	// Router and API
	r := mux.NewRouter()
	guideHandler := handlers.NewGuideHandler(guideService)
	limiter := api.NewIPRateLimiter(rate.Limit(10), 30)
	api.Register(r, guideHandler, limiter)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := guideService.Stop(shutdownCtx); err != nil {
		log.Printf("Guide scheduler shutdown error: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// openStore opens the durable cache store, falling back through backends.
func openStore(cfg config.DatabaseSettings) database.Store {
	store, err := database.NewSQLiteStore(cfg.Path)
	if err == nil {
		log.Printf("[main] using sqlite store at %s", cfg.Path)
		return store
	}
	log.Printf("[main] sqlite store unavailable (%v), trying file store", err)

	fileStore, ferr := database.NewFileStore(afero.NewOsFs(), cfg.FallbackDir)
	if ferr == nil {
		log.Printf("[main] using file store at %s", cfg.FallbackDir)
		return fileStore
	}
	log.Printf("[main] file store unavailable (%v), running memory-only", ferr)

	return database.NewMemoryStore()
}
