package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"relay-service/internal/auth"
	"relay-service/internal/config"
	"relay-service/internal/db"
	"relay-service/internal/handlers"
	"relay-service/internal/middleware"
	"relay-service/internal/observability"
	"relay-service/internal/rabbitmq"
	"relay-service/internal/repositories"
	"relay-service/internal/telemetry"
	"relay-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), "relay-service", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, "relay-service", cfg.Environment)

	if cfg.AMQPURL != "" {
		if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	registry := ws.NewRegistry()
	channels := ws.NewChannels()
	presence := ws.NewPresencePublisher(userRepo, registry)
	relay := ws.NewMessageRelay(messageRepo, conversationRepo, registry, channels)
	receipts := ws.NewReadReceipts(messageRepo, conversationRepo, channels)
	probe := ws.NewAvailabilityProbe(userRepo)

	gateway := ws.NewGateway(registry, channels, presence, relay, receipts, probe, conversationRepo, verifier, auditEmitter)

	conversationHandler := handlers.NewConversationHandler(conversationRepo, channels)
	messageHandler := handlers.NewMessageHandler(messageRepo, conversationRepo, relay, receipts)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("relay-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/chats", authMiddleware, conversationHandler.Start)
	router.GET("/chats", authMiddleware, conversationHandler.List)
	router.GET("/chats/unread", authMiddleware, conversationHandler.Unread)
	router.GET("/chats/:chat_id/messages", authMiddleware, messageHandler.GetMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, messageHandler.PostMessage)
	router.POST("/chats/:chat_id/read", authMiddleware, messageHandler.MarkRead)

	router.GET("/ws", gateway.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
