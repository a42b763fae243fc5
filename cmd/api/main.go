package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/minato/storefront-api/internal/config"
	"github.com/minato/storefront-api/internal/handler"
	"github.com/minato/storefront-api/internal/localstore"
	"github.com/minato/storefront-api/internal/middleware"
	"github.com/minato/storefront-api/internal/repository"
	"github.com/minato/storefront-api/internal/service"
	"github.com/minato/storefront-api/internal/storage"
	"github.com/minato/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	couponRepo := repository.NewCouponRepository(dbPool)
	addressRepo := repository.NewAddressRepository(dbPool)
	favoriteRepo := repository.NewFavoriteRepository(dbPool)
	settingsRepo := repository.NewSettingsRepository(dbPool)
	loyaltyRepo := repository.NewLoyaltyRepository(dbPool)

	// Session-scoped state (guest carts, checkout drafts, receipts)
	store := localstore.New(redisClient)

	// Services
	settingsSvc := service.NewSettingsService(settingsRepo, redisClient, log)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo, couponRepo, store, settingsSvc, log)
	checkoutSvc := service.NewCheckoutService(orderRepo, productRepo, couponRepo, userRepo, cartSvc, store, settingsSvc, amqpCh, log)
	orderSvc := service.NewOrderService(orderRepo, store)
	couponSvc := service.NewCouponService(couponRepo)
	favoriteSvc := service.NewFavoriteService(favoriteRepo, productRepo, store)
	addressSvc := service.NewAddressService(addressRepo)

	// Handlers
	authH := handler.NewAuthHandler(authSvc, cartSvc)
	userH := handler.NewUserHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	couponH := handler.NewCouponHandler(couponSvc)
	favoriteH := handler.NewFavoriteHandler(favoriteSvc)
	addressH := handler.NewAddressHandler(addressSvc)
	settingsH := handler.NewSettingsHandler(settingsSvc)
	uploadH := handler.NewUploadHandler(storage.NewFSStorage(cfg.Upload.Dir, cfg.Upload.BaseURL), cfg.Upload.MaxBytes)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Worker
	loyaltyWorker := worker.NewLoyaltyWorker(amqpCh, loyaltyRepo, redisClient, log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)
	router.Static(cfg.Upload.BaseURL, cfg.Upload.Dir)

	optional := middleware.OptionalAuth(cfg.JWT.Secret)
	authed := middleware.AuthMiddleware(cfg.JWT.Secret)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.GET("/me", authed, authH.Me)
		auth.PUT("/me", authed, authH.UpdateProfile)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/categories", productH.Categories)
		products.GET("/:id", productH.GetByID)

		cart := v1.Group("/cart", optional)
		cart.GET("", cartH.Get)
		cart.POST("/lines", cartH.AddLine)
		cart.PUT("/lines", cartH.UpdateQuantity)
		cart.DELETE("/lines", cartH.RemoveLine)
		cart.POST("/lines/restore", cartH.RestoreLine)
		cart.DELETE("", cartH.Clear)
		cart.POST("/coupon", cartH.ApplyCoupon)
		cart.DELETE("/coupon", cartH.RemoveCoupon)

		checkout := v1.Group("/checkout", optional)
		checkout.POST("/validate", checkoutH.Validate)
		checkout.POST("/confirm", checkoutH.Confirm)
		checkout.POST("/submit", checkoutH.Submit)
		checkout.GET("/receipt", checkoutH.Receipt)

		orders := v1.Group("/orders", optional)
		orders.GET("", orderH.List)
		orders.GET("/:id", authed, orderH.GetByID)

		coupons := v1.Group("/coupons")
		coupons.GET("", couponH.ListValid)

		favorites := v1.Group("/favorites", optional)
		favorites.GET("", favoriteH.List)
		favorites.POST("", favoriteH.Add)
		favorites.DELETE("/:productID", favoriteH.Remove)

		addresses := v1.Group("/addresses", authed)
		addresses.GET("", addressH.List)
		addresses.POST("", addressH.Create)
		addresses.PUT("/:id", addressH.Update)
		addresses.DELETE("/:id", addressH.Delete)

		v1.GET("/settings/pricing", settingsH.PricingRules)

		admin := v1.Group("/admin", authed, middleware.AdminOnly())
		admin.GET("/products", productH.AdminList)
		admin.GET("/products/:id", productH.AdminGet)
		admin.POST("/products", productH.Create)
		admin.PUT("/products/:id", productH.Update)
		admin.DELETE("/products/:id", productH.Delete)
		admin.GET("/orders", orderH.AdminList)
		admin.GET("/orders/:id", orderH.AdminGet)
		admin.PUT("/orders/:id/status", orderH.UpdateStatus)
		admin.GET("/coupons", couponH.AdminList)
		admin.POST("/coupons", couponH.Create)
		admin.PUT("/coupons/:id", couponH.Update)
		admin.DELETE("/coupons/:id", couponH.Delete)
		admin.GET("/users", userH.AdminList)
		admin.DELETE("/users/:id", userH.AdminDelete)
		admin.GET("/settings", settingsH.All)
		admin.PUT("/settings/:key", settingsH.Set)
		admin.POST("/uploads", uploadH.Upload)
	}

	if err := loyaltyWorker.Start(ctx); err != nil {
		log.Error("start loyalty worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	loyaltyWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
