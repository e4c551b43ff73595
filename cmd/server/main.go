package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/config"
	httpiface "github.com/ledgerpay/invoicer/internal/interfaces/http"
	"github.com/ledgerpay/invoicer/internal/ledger"
	"github.com/ledgerpay/invoicer/internal/permission"
	"github.com/ledgerpay/invoicer/internal/repository"
	"github.com/ledgerpay/invoicer/internal/service"
	"github.com/ledgerpay/invoicer/internal/token"
	"github.com/ledgerpay/invoicer/pkg/database"
	"github.com/ledgerpay/invoicer/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice service",
		zap.String("ledger_mode", cfg.Ledger.Mode),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.Run(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	invoiceRepo := repository.NewInvoiceRepository(db, logger)
	allowlistRepo := repository.NewAllowlistRepository(db, logger)

	servicePrincipal := cfg.ServicePrincipal()
	simLedger := ledger.NewSimLedger(servicePrincipal, cfg.Ledger.ICPFee, logger)

	registry := token.NewRegistry()
	registry.Register(token.NewICPAdapter(simLedger, servicePrincipal, cfg.Ledger.ICPFee))
	logger.Info("Token registry initialized", zap.Strings("symbols", registry.Symbols()))

	gate := permission.NewCreationGate(allowlistRepo, cfg.AdminPrincipals(), logger)

	invoices := service.NewInvoiceService(invoiceRepo, registry, gate, logger,
		service.WithExpiration(cfg.Invoice.Expiration))

	server := httpiface.NewServer(invoices, logger)
	router := server.Router(cfg.Logger.Level == "debug")

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
