// Package server assembles the services and HTTP routes of the ordering backend.
package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/config"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
	"github.com/mamadbah2/vaccine-orders/internal/server/handlers"
	"github.com/mamadbah2/vaccine-orders/internal/server/router"
	"github.com/mamadbah2/vaccine-orders/internal/service/auth"
	"github.com/mamadbah2/vaccine-orders/internal/service/catalog"
	"github.com/mamadbah2/vaccine-orders/internal/service/notify"
	"github.com/mamadbah2/vaccine-orders/internal/service/orders"
	"github.com/mamadbah2/vaccine-orders/internal/service/reporting"
	"github.com/mamadbah2/vaccine-orders/internal/service/whatsapp"
	"github.com/mamadbah2/vaccine-orders/internal/socket"
	"github.com/mamadbah2/vaccine-orders/internal/storage"
)

// Options are the externally built dependencies of the backend.
type Options struct {
	Config *config.Config
	Store  repository.Store
	// Images may be nil, which rejects uploads.
	Images storage.ImageStore
	// Notifier may be nil, which disables WhatsApp notices.
	Notifier *whatsapp.OpsNotifier
	// Publishers receive order status events next to the websocket hub.
	Publishers []notify.Publisher
	Logger     *zap.Logger
}

// App is the assembled backend.
type App struct {
	Engine    *gin.Engine
	Store     repository.Store
	Auth      *auth.Service
	Catalog   *catalog.Service
	Orders    *orders.Service
	Reporting *reporting.Service
	Hub       *socket.Hub
	Notifier  *whatsapp.OpsNotifier
}

// NewApp wires services, handlers and routes.
func NewApp(opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config

	hub := socket.NewHub(logger.Named("socket"))
	publishers := append([]notify.Publisher{hub}, opts.Publishers...)
	fanout := notify.NewFanout(logger.Named("notify"), publishers...)

	var placement orders.PlacementNotifier
	if opts.Notifier != nil {
		placement = opts.Notifier
	}

	authSvc := auth.NewService(opts.Store, cfg.Auth.CSRFSecret, cfg.Auth.CSRFTTL, logger.Named("svc.auth"))
	catalogSvc := catalog.NewService(opts.Store, opts.Images, logger.Named("svc.catalog"))
	orderSvc := orders.NewService(opts.Store, fanout, placement, logger.Named("svc.orders"))
	reportingSvc := reporting.NewService(opts.Store, cfg.Reporting.LowStockThreshold, cfg.Reporting.ExpiryWindowDays, logger.Named("svc.reporting"))

	deps := router.Deps{
		Catalog:        handlers.NewCatalogHandler(catalogSvc, logger.Named("handlers.catalog")),
		Orders:         handlers.NewOrderHandler(orderSvc, logger.Named("handlers.orders")),
		Auth:           handlers.NewAuthHandler(authSvc, cfg.Auth.CSRFTTL, logger.Named("handlers.auth")),
		WebSocket:      handlers.NewWebSocketHandler(hub, authSvc, cfg.Server.AllowedOrigins, logger.Named("handlers.ws")),
		Authenticator:  authSvc,
		CSRF:           authSvc,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if local, ok := opts.Images.(*storage.LocalStore); ok {
		deps.MediaDir = local.Dir()
		deps.MediaURL = cfg.Storage.PublicBaseURL
	}

	return &App{
		Engine:    router.New(deps, logger.Named("router")),
		Store:     opts.Store,
		Auth:      authSvc,
		Catalog:   catalogSvc,
		Orders:    orderSvc,
		Reporting: reportingSvc,
		Hub:       hub,
		Notifier:  opts.Notifier,
	}
}
