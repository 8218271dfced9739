package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tabify/internal/domain"
)

type OrderService interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id string, payment domain.PaymentStatus) (*domain.Order, error)
}

type MenuService interface {
	List(ctx context.Context) ([]domain.MenuItem, error)
}

// Deps carries everything the router serves.
type Deps struct {
	Orders OrderService
	Menu   MenuService
	// Sync is mounted at /ws when set.
	Sync http.Handler
	// Checks are pinged by /readyz.
	Checks       map[string]Pinger
	AllowOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.Logger, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.LoggerWithWriter(zap.NewStdLog(log.Named("gin")).Writer()),
		gin.Recovery(),
		cors.New(corsConfig(deps.AllowOrigins)),
	)

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Checks))

	api := router.Group("/api")
	h := &handlers{orders: deps.Orders, menu: deps.Menu, log: log}
	api.GET("/orders", h.listOrders)
	api.GET("/orders/:orderId", h.getOrder)
	api.PATCH("/orders/:orderId/status", h.updateStatus)
	api.PATCH("/orders/:orderId/payment", h.updatePayment)
	api.GET("/menu", h.listMenu)

	if deps.Sync != nil {
		router.GET("/ws", gin.WrapH(deps.Sync))
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPatch, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
