package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/servitec-app/informes-server/internal/config"
	"github.com/servitec-app/informes-server/internal/database"
	"github.com/servitec-app/informes-server/internal/handlers"
	"github.com/servitec-app/informes-server/internal/models"
	"github.com/servitec-app/informes-server/internal/repository"
	"github.com/servitec-app/informes-server/internal/services/document"
	"github.com/servitec-app/informes-server/internal/services/mailer"
	"github.com/servitec-app/informes-server/internal/storage"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Synchronize schema
	log.Println("🚀 Synchronizing database schema...")
	if err := db.AutoMigrate(&models.ServiceReport{}); err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Select asset storage backend
	var store storage.AssetStore
	switch cfg.Storage.Backend {
	case "minio":
		log.Printf("🪣 Storage: [MinIO] - %s/%s", cfg.Storage.Minio.Endpoint, cfg.Storage.Minio.Bucket)
		store, err = storage.NewMinioStore(context.Background(), cfg.Storage.Minio)
	default:
		log.Printf("📁 Storage: [Local] - %s", cfg.Storage.PublicDir)
		store, err = storage.NewLocalStore(cfg.Storage.PublicDir, cfg.BaseURL)
	}
	if err != nil {
		log.Fatalf("Failed to initialize asset storage: %v", err)
	}

	// 5. Build services and router
	repo := repository.NewReports(db)
	gen := document.NewGenerator(cfg.AppName)
	m := mailer.New(cfg.Mail, cfg.AppName)
	if cfg.Mail.Enabled() {
		log.Printf("📧 Notifications enabled (%s)", cfg.Mail.Recipient)
	} else {
		log.Println("📧 Notifications disabled (no SMTP configuration)")
	}

	router := handlers.NewRouter(cfg, repo, store, gen, m)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router.Handler(),
	}

	// 6. Start server with graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 Server starting on port %s [%s]\n", cfg.Port, cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
