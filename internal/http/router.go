package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/config"
	"delixmi-order-services/internal/dispatch"
	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/http/handlers"
	"delixmi-order-services/internal/middleware"
	"delixmi-order-services/internal/payments"
	"delixmi-order-services/internal/pricing"
	"delixmi-order-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Deps struct {
	DB       *pgxpool.Pool
	Logger   *zap.Logger
	Config   config.Config
	Events   *events.Emitter
	Dispatch *dispatch.Engine
	Gateway  payments.Gateway
	Distance pricing.DistanceFn
	WS       *ws.Server
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.RequestID())

	if deps.Config.Env == "development" || len(deps.Config.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           300,
		}
		if deps.Config.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool { return true }
		} else {
			options.AllowedOrigins = deps.Config.CorsAllowedOrigins
		}
		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{
		DB:       deps.DB,
		Logger:   deps.Logger,
		Config:   deps.Config,
		Events:   deps.Events,
		Dispatch: deps.Dispatch,
		Gateway:  deps.Gateway,
		Distance: deps.Distance,
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/webhooks/mercadopago", h.MercadoPagoWebhook)

	r.Get("/ws", deps.WS.Connect)

	authRequired := middleware.RequireAuth(deps.DB, deps.Config.JWTSecret)

	r.Group(func(r chi.Router) {
		r.Use(authRequired)
		r.Use(middleware.RequireRole(auth.RoleCustomer))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.CartList)
			r.Post("/add", h.CartAdd)
			r.Put("/update/{itemId}", h.CartUpdateQuantity)
			r.Delete("/remove/{itemId}", h.CartRemoveItem)
			r.Delete("/clear", h.CartClear)
		})

		r.Post("/checkout/create-preference", h.CheckoutCreatePreference)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.CustomerOrdersList)
			r.Get("/{orderId}", h.CustomerOrderDetail)
			r.Patch("/{orderId}/cancel", h.CustomerOrderCancel)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authRequired)
		r.Use(middleware.RequireRole(
			auth.RoleOwner, auth.RoleBranchManager, auth.RoleOrderManager, auth.RoleKitchenStaff,
		))

		r.Route("/restaurant/orders", func(r chi.Router) {
			r.Get("/", h.RestaurantOrdersList)
			r.Patch("/{orderId}/status", h.RestaurantOrderUpdateStatus)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authRequired)
		r.Use(middleware.RequireRole(auth.RoleDriverPlatform, auth.RoleDriverRestaurant))

		r.Route("/driver", func(r chi.Router) {
			r.Get("/orders/available", h.DriverAvailableOrders)
			r.Get("/orders/current", h.DriverCurrentOrder)
			r.Patch("/orders/{orderId}/accept", h.DriverAcceptOrder)
			r.Patch("/orders/{orderId}/complete", h.DriverCompleteOrder)
			r.Patch("/status", h.DriverSetStatus)
			r.Patch("/location", h.DriverUpdateLocation)
		})
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

// Hijack keeps the websocket upgrade working behind the logger.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
