package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"delixmi-order-services/internal/config"
	"delixmi-order-services/internal/db"
	"delixmi-order-services/internal/dispatch"
	"delixmi-order-services/internal/events"
	httpapi "delixmi-order-services/internal/http"
	"delixmi-order-services/internal/logger"
	"delixmi-order-services/internal/payments"
	"delixmi-order-services/internal/pricing"
	"delixmi-order-services/internal/queue"
	"delixmi-order-services/internal/routing"
	"delixmi-order-services/internal/ws"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	nodeID := uuid.NewString()

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; realtime stays node-local", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			nodeQueue := "delixmi.realtime." + nodeID
			if err := qc.EnsureExchange(queue.EventsExchange); err != nil {
				log.Warn("rabbitmq exchange failed; realtime stays node-local", zap.Error(err))
				_ = qc.Close()
				qc = nil
			} else if _, err := qc.EnsureNodeQueue(nodeQueue); err != nil {
				log.Warn("rabbitmq queue failed; realtime stays node-local", zap.Error(err))
				_ = qc.Close()
				qc = nil
			} else if err := qc.BindQueue(nodeQueue, queue.EventsExchange, "order.#"); err != nil {
				log.Warn("rabbitmq bind failed; realtime stays node-local", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		queueClient = qc
		if queueClient != nil {
			defer queueClient.Close()
		}
	} else {
		log.Info("event bridge disabled (RABBITMQ_URL is empty)")
	}

	wsServer := ws.New(pool, log, cfg)
	emitter := events.New(wsServer.Hub, queueClient, log, nodeID)

	if queueClient != nil && cfg.RabbitMQWorkerMode == "daemon" {
		log.Info("event bridge enabled", zap.String("nodeId", nodeID))
		go func() {
			if err := emitter.RunBridge("delixmi.realtime." + nodeID); err != nil {
				log.Error("event bridge stopped", zap.Error(err))
			}
		}()
	}

	gateway := payments.NewMercadoPago(cfg.MercadoPagoBaseURL, cfg.MercadoPagoAccessToken, cfg.ExternalCallTimeout)
	routingClient := routing.NewClient(cfg.RoutingBaseURL, cfg.ExternalCallTimeout, log)

	var distance pricing.DistanceFn
	if cfg.RoutingBaseURL != "" {
		distance = routingClient.Distance
	} else {
		log.Info("routing disabled; delivery fees use the distance fallback")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		DB:       pool,
		Logger:   log,
		Config:   cfg,
		Events:   emitter,
		Dispatch: dispatch.New(pool, log),
		Gateway:  gateway,
		Distance: distance,
		WS:       wsServer,
	})

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order ws ready", zap.String("base", "/ws"))
		log.Info("order service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}
