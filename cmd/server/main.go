package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/cpacheco/cyclecount/internal/adapter/handler"
	"github.com/cpacheco/cyclecount/internal/adapter/storage"
	"github.com/cpacheco/cyclecount/internal/core/service"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultMySQLDSN    = "cyclecount:cyclecount@tcp(localhost:3306)/cyclecount?parseTime=true"
	defaultRedisAddr   = "localhost:6379"
	defaultLockMinutes = 20
	defaultTimezone    = "America/Chicago"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpAddr := envOr("HTTP_ADDR", defaultHTTPAddr)
	mysqlDSN := envOr("MYSQL_DSN", defaultMySQLDSN)
	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)
	lockTTL := time.Duration(envIntOr("LOCK_MINUTES", defaultLockMinutes)) * time.Minute

	tz, err := time.LoadLocation(envOr("TIMEZONE", defaultTimezone))
	if err != nil {
		log.Fatalf("invalid TIMEZONE: %v", err)
	}

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	assignmentStore := storage.NewAssignmentStore(db)
	submissionStore := storage.NewSubmissionStore(db)
	inventoryCache := storage.NewRedisAdapter(rdb)

	// Initialize services
	lockService := service.NewLockService(assignmentStore, lockTTL, tz)
	assignmentService := service.NewAssignmentService(assignmentStore, inventoryCache, tz)
	submissionService := service.NewSubmissionService(submissionStore, assignmentStore, lockService, tz)
	log.Printf("lock window: %s, timezone: %s", lockTTL, tz)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(assignmentService, lockService, submissionService)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", httpHandler.HealthCheck)
	mux.HandleFunc("POST /api/assignments", httpHandler.CreateAssignments)
	mux.HandleFunc("GET /api/assignments", httpHandler.ListAssignments)
	mux.HandleFunc("POST /api/assignments/{id}/lock", httpHandler.LockAssignment)
	mux.HandleFunc("POST /api/assignments/{id}/reopen", httpHandler.ReopenAssignment)
	mux.HandleFunc("GET /api/inventory/expected", httpHandler.ExpectedQty)
	mux.HandleFunc("PUT /api/inventory", httpHandler.ReplaceInventory)
	mux.HandleFunc("POST /api/submissions", httpHandler.CreateSubmission)
	mux.HandleFunc("GET /api/submissions", httpHandler.ListSubmissions)
	mux.HandleFunc("DELETE /api/submissions/{id}", httpHandler.DeleteSubmission)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}
