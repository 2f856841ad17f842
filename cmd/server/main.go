package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/eduotp/eduotp/internal/config"
	"github.com/eduotp/eduotp/internal/gateway"
	"github.com/eduotp/eduotp/internal/handlers"
	"github.com/eduotp/eduotp/internal/middleware"
	"github.com/eduotp/eduotp/internal/repository"
	"github.com/eduotp/eduotp/internal/service"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// The AWS config is only needed when a component actually talks to AWS,
	// so memory/console runs work without credentials.
	var awsCfg aws.Config
	if cfg.Storage.Driver == "dynamodb" || cfg.SMS.Provider == "sns" {
		awsCfg, err = initAWS(cfg)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize AWS config")
		}
	}

	store, err := initStore(cfg, awsCfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OTP store")
	}

	limiter, err := initLimiter(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize rate limiter")
	}

	smsGateway, err := gateway.New(gateway.Kind(cfg.SMS.Provider), awsCfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize SMS gateway")
	}

	var tokenService *service.TokenService
	if cfg.JWT.SecretKey != "" {
		tokenService, err = service.NewTokenService(&cfg.JWT, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize token service")
		}
	}

	otpService := service.NewOTPService(store, limiter, smsGateway, tokenService, &cfg.OTP, &cfg.SMS, logger)
	otpHandlers := handlers.NewOTPHandlers(otpService, &cfg.OTP, &cfg.RateLimit, logger)

	router := setupRouter(otpHandlers, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initAWS(cfg *config.Config) (aws.Config, error) {
	if cfg.AWS.Endpoint != "" {
		return awsconfig.LoadDefaultConfig(context.TODO(),
			awsconfig.WithRegion(cfg.AWS.Region),
			awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
				func(service, region string, options ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{
						URL:           cfg.AWS.Endpoint,
						SigningRegion: cfg.AWS.Region,
					}, nil
				})),
		)
	}

	return awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.AWS.Region))
}

func initStore(cfg *config.Config, awsCfg aws.Config, logger *logrus.Logger) (service.OTPStore, error) {
	switch cfg.Storage.Driver {
	case "dynamodb":
		client := dynamodb.NewFromConfig(awsCfg)
		logger.WithField("table", cfg.DynamoDB.TableName).Info("DynamoDB OTP store initialized")
		return repository.NewOTPRepository(client, cfg.DynamoDB.TableName, logger), nil
	case "memory":
		logger.Warn("Using in-memory OTP store; records do not survive restarts")
		return repository.NewMemoryOTPStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func initLimiter(cfg *config.Config, logger *logrus.Logger) (service.RateLimiter, error) {
	switch cfg.RateLimit.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Endpoint,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.WithField("endpoint", cfg.Redis.Endpoint).Info("Redis rate limiter initialized")
		return repository.NewRedisRateLimiter(client, cfg.RateLimit.Window, cfg.RateLimit.MaxRequests, logger), nil
	case "memory":
		logger.Warn("Using in-memory rate limiter; counters do not survive restarts")
		return repository.NewMemoryRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests), nil
	default:
		return nil, fmt.Errorf("unknown rate limit driver %q", cfg.RateLimit.Driver)
	}
}

func setupRouter(otpHandlers *handlers.OTPHandlers, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	otp := api.PathPrefix("/otp").Subrouter()
	otp.HandleFunc("/send", otpHandlers.SendOTP).Methods("POST", "OPTIONS")
	otp.HandleFunc("/verify", otpHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	otp.HandleFunc("/status", otpHandlers.Status).Methods("GET", "OPTIONS")
	otp.HandleFunc("/status/{otp_id}", otpHandlers.StatusByID).Methods("GET", "OPTIONS")

	return router
}
