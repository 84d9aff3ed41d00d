package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/bookadmin/gateway"
	"github.com/example/bookadmin/pkg/auth"
	"github.com/example/bookadmin/pkg/catalog"
	"github.com/example/bookadmin/pkg/config"
	"github.com/example/bookadmin/pkg/discovery"
	"github.com/example/bookadmin/pkg/invoice"
	"github.com/example/bookadmin/pkg/logging"
	"github.com/example/bookadmin/pkg/metrics"
	"github.com/example/bookadmin/pkg/orderapi"
	"github.com/example/bookadmin/pkg/orderview"
	"github.com/example/bookadmin/pkg/repository"
	"github.com/example/bookadmin/pkg/service"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order desk gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host))

	var sd *discovery.ServiceDiscovery
	if len(cfg.Etcd.Endpoints) > 0 {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
			sd = nil
		}
	}
	upstream := &discovery.ServiceEndpoint{
		Discovery: sd,
		Name:      cfg.Upstream.ServiceName,
		Fallback:  cfg.Upstream.BaseURL,
		Logger:    logger,
	}

	credentials := auth.Chain{auth.ContextProvider{}}
	if cfg.Upstream.ServiceToken != "" {
		credentials = append(credentials, auth.StaticToken(cfg.Upstream.ServiceToken))
	}

	reg := metrics.NewRegistry()

	catalogClient := catalog.NewClient(upstream, credentials, logger, catalog.Options{
		Timeout:        cfg.Catalog.EnrichTimeout,
		MaxConcurrency: cfg.Catalog.MaxConcurrency,
		Metrics:        reg,
	})

	renderer, err := invoice.NewRenderer(cfg.Invoice.CurrencySymbol)
	if err != nil {
		logger.Fatal("Failed to load invoice template", zap.Error(err))
	}

	policy := orderview.PolicyStrict
	if cfg.Orders.AllowStatusOverride {
		policy = orderview.PolicyOverride
	}

	deps := service.Dependencies{
		API:         orderapi.NewClient(upstream, credentials, cfg.Upstream.Timeout, logger),
		Reconciler:  orderview.NewReconciler(catalogClient, cfg.Orders.GSTRate, logger),
		Credentials: credentials,
		Renderer:    renderer,
		Printer:     invoice.NewPrinter(cfg.Invoice.ChromePath, cfg.Invoice.PDFTimeout, logger),
		Metrics:     reg,
		Logger:      logger,
		Seller:      invoice.Seller{Name: cfg.Invoice.SellerName, Address: cfg.Invoice.SellerAddress},
		Policy:      policy,
	}

	// Redis, MongoDB and MySQL are optional; the desk runs without cache,
	// audit trail or invoice register when they are unreachable.
	if cfg.Redis.Addr != "" {
		redisClient := repository.NewRedisClient(&cfg.Redis)
		defer redisClient.Close()
		cache := repository.NewViewCache(redisClient, cfg.Orders.ViewCacheTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := cache.Ping(pingCtx); err != nil {
			logger.Warn("Redis unavailable, view cache disabled", zap.Error(err))
		} else {
			deps.Cache = cache
		}
		cancel()
	}

	if cfg.MongoDB.URI != "" {
		audit, err := repository.NewAuditRepository(&cfg.MongoDB, cfg.Gateway.Name)
		if err != nil {
			logger.Warn("Failed to connect to MongoDB, audit trail disabled", zap.Error(err))
		} else {
			defer audit.Close(context.Background())
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := audit.Ping(pingCtx); err != nil {
				logger.Warn("MongoDB unavailable, audit trail disabled", zap.Error(err))
			} else {
				deps.Audit = audit
			}
			cancel()
		}
	}

	if cfg.MySQL.Host != "" {
		db, err := repository.OpenMySQL(&cfg.MySQL)
		if err == nil {
			var register *repository.InvoiceRepository
			register, err = repository.NewInvoiceRepository(db)
			if err == nil {
				deps.Register = register
			}
		}
		if err != nil {
			logger.Warn("Invoice register unavailable, issuing draft invoices", zap.Error(err))
		}
	}

	gw := gateway.NewGateway(&cfg.Gateway, service.NewOrderService(deps), reg.Handler(), logger)

	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	self := &discovery.ServiceInstance{Name: cfg.Gateway.Name, Host: cfg.Gateway.Host, Port: cfg.Gateway.Port}
	registered := false
	if sd != nil {
		if err := sd.Register(context.Background(), self); err != nil {
			logger.Warn("Failed to register gateway", zap.Error(err))
		} else {
			registered = true
		}
	}

	logger.Info("Gateway started successfully")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Error("Gateway error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}

	if sd != nil {
		if registered {
			if err := sd.Deregister(shutdownCtx, self); err != nil {
				logger.Warn("Failed to deregister gateway", zap.Error(err))
			}
		}
		sd.Close()
	}

	logger.Info("Gateway stopped")
}
