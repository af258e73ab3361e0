package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"digitalcart/internal/config"
	"digitalcart/internal/database"
	"digitalcart/internal/events"
	"digitalcart/internal/handlers"
	"digitalcart/internal/lock"
	"digitalcart/internal/mailer"
	"digitalcart/internal/middleware"
	"digitalcart/internal/models"
	"digitalcart/internal/payments"
	"digitalcart/internal/service/abandonment"
	"digitalcart/internal/service/checkout"
	"digitalcart/internal/service/coupon"
	"digitalcart/internal/service/download"
	"digitalcart/internal/service/pagegen"
	"digitalcart/internal/storage"
	"digitalcart/internal/store"
	"digitalcart/internal/workers"
)

func main() {
	config.Load()
	cfg := config.AppEnv

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(cfg.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("[DB] [WARN] index warning: %v", err)
	}

	users := store.NewUsers(db)
	customers := store.NewCustomers(db)
	products := store.NewProducts(db)
	orders := store.NewOrders(db)
	tokens := store.NewDownloadTokens(db)
	coupons := store.NewCoupons(db)
	carts := store.NewCarts(db)
	sequences := store.NewSequences(db)
	pages := store.NewPages(db)
	templates := store.NewTemplates(db)
	plans := store.NewPlans(db)

	files := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL, cfg.FileSigningSecret)
	sender := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("Failed to create kafka publisher: %v", err)
		}
		publisher = kafka
	}

	var lease lock.Lease = lock.NewLocal()
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		lease = lock.Chain{lock.NewLocal(), lock.NewRedis(redisClient)}
	}

	gateway := payments.NewGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	var model llms.Model
	if cfg.OpenAIAPIKey != "" {
		llm, err := openai.New(
			openai.WithModel(cfg.OpenAIModel),
			openai.WithToken(cfg.OpenAIAPIKey),
		)
		if err != nil {
			log.Fatalf("Failed to create page generation model: %v", err)
		}
		model = llm
	} else {
		log.Println("[PAGEGEN] [INFO] OPENAI_API_KEY not set, page generation disabled")
	}
	pageGen := pagegen.NewGenerator(model)

	downloads := download.NewService(orders, products, tokens, files, publisher, download.Options{
		BaseURL: cfg.PublicBaseURL,
		URLTTL:  cfg.SignedURLTTL,
	})
	couponSvc := coupon.NewService(coupons)
	recovery := abandonment.NewService(carts, sequences, templates, sender, publisher, cfg.AbandonmentMinGap)
	checkouts := checkout.NewService(checkout.Deps{
		Orders:        orders,
		Products:      products,
		Customers:     customers,
		Coupons:       coupons,
		Templates:     templates,
		Gateway:       gateway,
		Carts:         recovery,
		Tokens:        downloads,
		Sender:        sender,
		Publisher:     publisher,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	worker := workers.NewAbandonmentWorker(recovery, lease, cfg.AbandonmentInterval)
	worker.Start(context.Background())

	auth := handlers.AuthConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}

	r := gin.Default()
	r.MaxMultipartMemory = 32 << 20

	r.GET("/ping", handlers.Ping(db))
	r.GET("/files/*path", handlers.ServeFile(files))

	api := r.Group("/api")

	api.POST("/auth/register", handlers.Register(users, auth))
	api.POST("/auth/login", handlers.Login(users, auth))
	api.POST("/auth/refresh", handlers.Refresh(users, auth))
	api.POST("/auth/logout", handlers.Logout(users))
	api.GET("/auth/me", middleware.AuthGuard(cfg.JWTSecret), handlers.GetMe(users))

	api.GET("/downloads/:token", handlers.Download(downloads))
	api.GET("/downloads/:token/:fileId", handlers.Download(downloads))
	api.GET("/orders/confirmation/:token", handlers.OrderConfirmation(downloads))
	api.GET("/pages/:slug", handlers.GetPublicPage(pages))
	api.POST("/cart/track", handlers.TrackCart(recovery))
	api.POST("/cart/recover/:cartId", handlers.RecoverCart(recovery))
	api.POST("/coupons/validate", handlers.ValidateCoupon(couponSvc))
	api.POST("/checkout", handlers.Checkout(checkouts))
	api.POST("/webhooks/stripe", handlers.StripeWebhook(gateway, checkouts))

	seller := api.Group("")
	seller.Use(middleware.AuthGuard(cfg.JWTSecret, models.RoleSeller, models.RoleSuperAdmin))
	{
		seller.GET("/products", handlers.ListProducts(products))
		seller.POST("/products", handlers.CreateProduct(products, files, cfg.Currency))
		seller.GET("/products/:id", handlers.GetProduct(products))
		seller.PUT("/products/:id", handlers.UpdateProduct(products, files))
		seller.DELETE("/products/:id", handlers.DeleteProduct(products, files))
		seller.POST("/products/:id/files", handlers.UploadProductFile(products, files))
		seller.DELETE("/products/:id/files/:fileId", handlers.DeleteProductFile(products, files))

		seller.GET("/coupons", handlers.ListCoupons(coupons))
		seller.POST("/coupons", handlers.CreateCoupon(coupons))
		seller.PUT("/coupons/:id", handlers.UpdateCoupon(coupons))
		seller.DELETE("/coupons/:id", handlers.DeleteCoupon(coupons))

		seller.GET("/seller/pages", handlers.ListPages(pages))
		seller.POST("/seller/pages", handlers.CreatePage(pages))
		seller.GET("/seller/pages/:id", handlers.GetPage(pages))
		seller.PUT("/seller/pages/:id", handlers.UpdatePage(pages, false))
		seller.PATCH("/seller/pages/:id", handlers.UpdatePage(pages, true))
		seller.DELETE("/seller/pages/:id", handlers.DeletePage(pages))
		seller.POST("/seller/pages/:id/generate", handlers.GeneratePageBlocks(pages, products, pageGen))

		seller.GET("/email-templates", handlers.ListTemplates(templates))
		seller.POST("/email-templates", handlers.CreateTemplate(templates))
		seller.PUT("/email-templates/:id", handlers.UpdateTemplate(templates))
		seller.DELETE("/email-templates/:id", handlers.DeleteTemplate(templates))

		seller.GET("/orders", handlers.ListOrders(orders))
		seller.GET("/orders/:id", handlers.GetOrder(orders))
		seller.GET("/customers", handlers.ListCustomers(customers))

		seller.GET("/cart/abandoned", handlers.ListAbandonedCarts(recovery))
		seller.GET("/cart/sequence", handlers.GetSequence(recovery))
		seller.PUT("/cart/sequence", handlers.PutSequence(recovery))
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthGuard(cfg.JWTSecret, models.RoleSuperAdmin))
	{
		admin.GET("/plans", handlers.ListPlans(plans))
		admin.POST("/plans", handlers.CreatePlan(plans))
		admin.PUT("/plans/:id", handlers.UpdatePlan(plans))
		admin.DELETE("/plans/:id", handlers.DeletePlan(plans))

		admin.GET("/gateways", handlers.ListGateways(plans))
		admin.POST("/gateways", handlers.CreateGateway(plans))
		admin.PUT("/gateways/:id", handlers.UpdateGateway(plans))
		admin.DELETE("/gateways/:id", handlers.DeleteGateway(plans))
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Println("Server listening on", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}

	worker.Stop()
	publisher.Close()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := client.Disconnect(ctx); err != nil {
		log.Printf("[DB] [WARN] disconnect: %v", err)
	}

	log.Println("Server stopped gracefully")
}
