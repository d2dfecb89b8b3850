package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	c "github.com/Yousefa7medmaher/cart-service/internal/cache"
	"github.com/Yousefa7medmaher/cart-service/internal/catalog"
	carthttp "github.com/Yousefa7medmaher/cart-service/internal/http"
	"github.com/Yousefa7medmaher/cart-service/internal/poller"
	"github.com/Yousefa7medmaher/cart-service/internal/repository"
	s "github.com/Yousefa7medmaher/cart-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Configuration
	httpPort := getEnv("HTTP_PORT", "3003")
	catalogURL := getEnv("PRODUCT_SERVICE_URL", "http://localhost:3001/api/products")
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoDBName := getEnv("MONGO_DB_NAME", "cartdb")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")
	requestTimeout := 30 * time.Second

	// Set up MongoDB connection
	ctx := context.Background()
	mongoDB, err := repository.ConnectMongoDB(ctx, mongoURI, mongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	store := repository.NewMongoStore(mongoDB)
	if err := store.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", mongoURI)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cartCache := c.NewRedisCache(redisClient)
	catalogClient := catalog.NewClient(catalogURL)
	service := s.NewCartService(store, catalogClient, cartCache)
	cartHandler := carthttp.NewCartHandler(service, requestTimeout)

	// Checkout event consumer (optional)
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	defer pollerCancel()
	if kafkaBrokers != "" {
		p := poller.NewPoller(service, splitCSV(kafkaBrokers)...)
		defer p.Close()
		go p.Run(pollerCtx)
		log.Printf("Checkout consumer started on %s", kafkaBrokers)
	}

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(carthttp.RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"OK","service":"Cart Service"}`)
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(carthttp.AuthMiddleware)
		r.Mount("/", cartHandler.Routes())
	})

	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: otelhttp.NewHandler(r, "cart-service"),
	}

	go func() {
		log.Printf("Cart service listening on port %s", httpPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down cart service...")
	pollerCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	mongoDB.Client().Disconnect(ctx)
	log.Println("Cart service stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
