// Package app wires the options service together and runs it until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/rwaoptions/internal/codec"
	"github.com/alanyoungcy/rwaoptions/internal/config"
	"github.com/alanyoungcy/rwaoptions/internal/crypto"
	"github.com/alanyoungcy/rwaoptions/internal/disclosure"
	"github.com/alanyoungcy/rwaoptions/internal/server"
	"github.com/alanyoungcy/rwaoptions/internal/server/handler"
	"github.com/alanyoungcy/rwaoptions/internal/server/ws"
	"github.com/alanyoungcy/rwaoptions/internal/service"
	"github.com/alanyoungcy/rwaoptions/internal/wallet"
)

// App owns the configuration, the logger and the cleanup functions that are
// called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies, starts the session and serves the HTTP API
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("ledger", a.cfg.Ledger.Backend),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	catalog, w, err := a.startSession(deps)
	if err != nil {
		return fmt.Errorf("app: start session: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, catalog, w.Account())
	return g.Wait()
}

// startSession resolves the wallet, fixes the disclosure parameters for the
// lifetime of the process and builds the catalog over deps.
func (a *App) startSession(deps *Dependencies) (*service.Catalog, *wallet.KeyWallet, error) {
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, err
	}
	w := wallet.New(signer, a.cfg.Wallet.AutoApprove, a.logger)

	publicKey, err := crypto.GenerateSessionPublicKey()
	if err != nil {
		return nil, nil, err
	}

	startedAt := time.Now().UTC()
	params := disclosure.NewParams(
		publicKey,
		a.cfg.Chain.ContractAddress,
		a.cfg.Chain.ChainID,
		startedAt,
		a.cfg.Disclosure.DurationDays,
	)
	c := codec.New()
	auth := disclosure.NewAuthorizer(params, w, c, a.logger)
	session := service.NewSession(w.Account(), params, startedAt)

	catalog := service.NewCatalog(deps.Ledger, c, auth, session, a.logger).
		WithIndexCAS(a.cfg.Ledger.IndexCAS).
		WithSignalBus(deps.SignalBus).
		WithAudit(deps.AuditStore).
		WithNotifier(deps.Notifier)
	if deps.BlobWriter != nil {
		catalog.WithSnapshots(deps.BlobWriter, deps.LockManager, a.cfg.S3.Prefix)
	}

	a.logger.Info("session started",
		slog.String("account", session.Account),
		slog.String("contract", params.ContractAddress),
		slog.Int64("chain_id", params.ChainID),
		slog.Int("duration_days", params.DurationDays),
		slog.Bool("auto_approve", a.cfg.Wallet.AutoApprove),
	)
	return catalog, w, nil
}

// startHTTPServer adds the API server, the websocket hub (when a signal bus
// is wired) and the graceful shutdown goroutine to g.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	catalog *service.Catalog,
	account string,
) {
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.Ledger),
		Positions:  handler.NewPositionHandler(catalog, account, a.logger),
		Disclosure: handler.NewDisclosureHandler(catalog, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(catalog, a.logger)
	}
	if catalog.SnapshotsEnabled() {
		handlers.Snapshots = handler.NewSnapshotHandler(catalog, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Account:        account,
			StartedAt:      catalog.Session().StartedAt,
			AllowedOrigins: a.cfg.Server.CORSOrigins,
		}, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// Close tears down all resources in reverse registration order. It is safe
// to call more than once.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
