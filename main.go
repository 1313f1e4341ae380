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
	"strings"
	"syscall"
	"time"

	"cinelist/api"
	"cinelist/config"
	"cinelist/handlers"
	"cinelist/internal/database"
	"cinelist/services/listitems"
	"cinelist/services/metadata"
	"cinelist/services/sessions"
	"cinelist/services/users"

	"github.com/gorilla/mux"
	"github.com/sethvargo/go-password/password"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	adminEmail := flag.String("grant-admin", "", "grant admin to the account with this email and exit")
	flag.Parse()

	fmt.Println("🎬 CineList Starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("CINELIST_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
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

	// Generate and persist a signing secret on first start
	settings.Auth.JWTSecret = strings.TrimSpace(settings.Auth.JWTSecret)
	if settings.Auth.JWTSecret == "" {
		secret, err := password.Generate(64, 20, 0, false, true)
		if err != nil {
			log.Fatalf("failed to generate signing secret: %v", err)
		}
		settings.Auth.JWTSecret = secret
		if err := cfgManager.Save(settings); err != nil {
			log.Fatalf("failed to persist signing secret: %v", err)
		}
		log.Println("Generated new session signing secret")
	}

	// Open database and run migrations
	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	// Services
	usersService := users.NewService(db)
	sessionsService, err := sessions.NewService(
		db,
		settings.Auth.JWTSecret,
		time.Duration(settings.Auth.SessionTTLHours)*time.Hour,
		time.Duration(settings.Auth.InviteTTLHours)*time.Hour,
	)
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}
	listItemsService := listitems.NewService(db, settings.List.Mode)
	metadataService := metadata.NewService(settings.Metadata.TMDBAccessToken, settings.Metadata.Language, nil)

	if *adminEmail != "" {
		grantAdmin(usersService, *adminEmail)
		return
	}

	if settings.Metadata.TMDBAccessToken == "" {
		log.Println("Warning: no TMDB access token configured; search will fail until one is set")
	}
	log.Printf("List mode: %s", settings.List.Mode)

	// Handlers
	authHandler := handlers.NewAuthHandler(usersService, sessionsService)
	listItemsHandler := handlers.NewListItemsHandler(listItemsService, usersService, metadataService)
	searchHandler := handlers.NewSearchHandler(metadataService)
	imageHandler := handlers.NewImageHandler(settings.Cache.Directory)
	pagesHandler := handlers.NewPagesHandler()

	// Construct router and register routes
	r := mux.NewRouter()
	api.Register(r, authHandler, listItemsHandler, searchHandler, imageHandler, pagesHandler, sessionsService, usersService)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
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
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// grantAdmin promotes an existing account to admin from the command line.
// There is no in-app way to create the first admin.
func grantAdmin(usersService *users.Service, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := usersService.GetByEmail(ctx, email)
	if err != nil {
		log.Fatalf("failed to find account %s: %v", email, err)
	}
	if err := usersService.SetAdmin(ctx, user.ID, true); err != nil {
		log.Fatalf("failed to grant admin: %v", err)
	}
	fmt.Printf("✅ %s is now an admin\n", user.Email)
}
