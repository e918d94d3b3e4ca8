package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mesikahq/clinic-desk/internal/api"
	"github.com/mesikahq/clinic-desk/internal/audit"
	"github.com/mesikahq/clinic-desk/internal/auth"
	"github.com/mesikahq/clinic-desk/internal/config"
	"github.com/mesikahq/clinic-desk/internal/database"
	"github.com/mesikahq/clinic-desk/internal/patient"
	"github.com/mesikahq/clinic-desk/internal/report"
	"github.com/mesikahq/clinic-desk/internal/storage"
	"github.com/mesikahq/clinic-desk/internal/suggestion"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := database.NewMongoClient(ctx, &database.Config{
		URI:            cfg.Mongo.URI,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MinPoolSize:    cfg.Mongo.MinPoolSize,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("failed to ensure indexes", zap.Error(err))
	}

	var auditService audit.Service
	if cfg.Elasticsearch.URL != "" {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{cfg.Elasticsearch.URL},
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			logger.Fatal("failed to connect to Elasticsearch", zap.Error(err))
		}
		auditService = audit.NewService(esClient)
	} else {
		logger.Warn("elasticsearch url not configured, audit trail disabled")
		auditService = audit.Nop()
	}

	files, err := storage.NewStore(cfg.Reports.Dir)
	if err != nil {
		logger.Fatal("failed to initialize report store", zap.Error(err))
	}
	logger.Info("serving report files", zap.String("dir", files.Dir()))

	authService := auth.NewService(db, auditService, auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry,
	})
	suggestionService := suggestion.NewService(db)
	patientService := patient.NewService(db, suggestionService, auditService, logger)
	reportService := report.NewService(patientService, files, auditService, logger)

	handler := api.NewHandler(authService, patientService, reportService, suggestionService, auditService)
	router := api.NewRouter(handler, authService, cfg.Server.CORSOrigin)
	engine := router.SetupRouter(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
