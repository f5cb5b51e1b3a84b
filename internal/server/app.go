// Package server wires the watcher daemon: storage, the directory session,
// the monitoring loop, the operator gRPC API and the admin HTTP endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/handlewatch/internal/buildinfo"
	"github.com/dmitrijs2005/handlewatch/internal/checker"
	"github.com/dmitrijs2005/handlewatch/internal/credentials"
	"github.com/dmitrijs2005/handlewatch/internal/dbx"
	"github.com/dmitrijs2005/handlewatch/internal/directory"
	"github.com/dmitrijs2005/handlewatch/internal/logging"
	"github.com/dmitrijs2005/handlewatch/internal/server/config"
	"github.com/dmitrijs2005/handlewatch/internal/server/export"
	"github.com/dmitrijs2005/handlewatch/internal/server/httpx"
	"github.com/dmitrijs2005/handlewatch/internal/server/notify"
	"github.com/dmitrijs2005/handlewatch/internal/server/services"
	"github.com/dmitrijs2005/handlewatch/internal/server/storage"
	"github.com/dmitrijs2005/handlewatch/internal/session"
	"github.com/dmitrijs2005/handlewatch/internal/telegram"

	gs "github.com/dmitrijs2005/handlewatch/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer

	store      *storage.Store
	sessions   *session.Manager
	monitoring *services.MonitoringService
	grpc       *gs.GRPCServer
	http       *httpx.Server
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func newDestination(ctx context.Context, c *config.Config) (export.Destination, error) {
	if !c.S3Enabled() {
		return export.NewLocalDir(c.ExportDir), nil
	}
	return export.NewBucket(ctx, export.S3Config{
		Region:    c.S3Region,
		Endpoint:  c.S3Endpoint,
		AccessKey: c.S3AccessKey,
		SecretKey: c.S3SecretKey,
		Bucket:    c.S3Bucket,
	})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, logCloser, err := logging.New(c.LogLevel, c.LogDir)
	if err != nil {
		return nil, err
	}
	app := &App{config: c, logger: logger, logCloser: logCloser}
	if err := app.init(ctx); err != nil {
		_ = app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	dialect, err := dbx.ParseDialect(c.DBDriver)
	if err != nil {
		return err
	}
	app.store, err = storage.Open(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}

	dest, err := newDestination(ctx, c)
	if err != nil {
		return fmt.Errorf("export init error: %w", err)
	}

	operators := services.NewOperatorService(c.Operators, c.SecretKey, c.AccessTokenValidity)
	hub := notify.NewHub(app.logger)
	bridge := credentials.NewBridge(hub, 0, app.logger)

	app.sessions, err = session.NewManager(
		telegram.Factory(telegram.Config{AppID: c.AppID, AppHash: c.AppHash, SessionPath: c.SessionPath}, app.logger),
		bridge, hub,
		session.Options{SessionPath: c.SessionPath, Operators: operators.IDs(), HandshakeTimeout: c.HandshakeTimeout},
		app.logger,
	)
	if err != nil {
		return err
	}

	reg := newRegistry()
	chk := checker.New(directory.NewAdapter(app.sessions), checker.Options{
		Concurrency:     c.Concurrency,
		LookupDelay:     c.LookupDelay,
		ThrottleRecheck: c.ThrottleRecheck,
	}, checker.NewMetrics(reg), app.logger)

	relay := services.NewFreedRelay(hub, app.store, operators.IDs(), app.logger)
	monitor := checker.NewMonitor(chk, app.store, relay, app.logger)

	app.monitoring = services.NewMonitoringService(app.store, monitor, chk, app.sessions, relay, services.MonitoringOptions{
		Defaults: services.Tunables{
			Concurrency: c.Concurrency,
			BatchSize:   c.BatchSize,
			BatchDelay:  c.BatchDelay,
			CycleDelay:  c.CycleDelay,
		},
		EmptyPoll:    c.EmptyPoll,
		ErrorBackoff: c.ErrorBackoff,
	}, app.logger)

	handleService := services.NewHandleService(app.store, export.NewService(app.store, dest), app.logger)
	sessionService := services.NewSessionService(app.sessions, bridge, app.monitoring, app.logger)

	app.grpc = gs.NewGRPCServer(c.GRPCAddr, app.logger, gs.Deps{
		Operators:  operators,
		Handles:    handleService,
		Monitoring: app.monitoring,
		Session:    sessionService,
		Events:     hub,
	}, c.SecretKey, buildinfo.Version)
	app.http = httpx.NewServer(c.HTTPAddr, app.store, monitor, reg, app.logger)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// boot aligns the persisted monitoring flag and starts the session
// handshake in the background so operators get prompted right away.
func (app *App) boot(ctx context.Context) {
	if err := app.monitoring.Reconcile(ctx); err != nil {
		app.logger.Error(ctx, "reconcile monitoring flag", "error", err)
	}
	ok, err := app.sessions.EnsureAuthorized(ctx, 0)
	switch {
	case err != nil:
		app.logger.Error(ctx, "session check failed", "error", err)
	case ok:
		app.logger.Info(ctx, "session authorized")
	default:
		app.logger.Info(ctx, "session needs authorization, operators prompted")
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version)
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error {
		app.boot(gctx)
		return nil
	})

	err := g.Wait()
	app.logger.Info(ctx, "Stopping app...")
	return errors.Join(err, app.close(context.WithoutCancel(ctx)))
}

func (app *App) close(ctx context.Context) error {
	var errs []error
	if app.monitoring != nil {
		errs = append(errs, app.monitoring.Halt(ctx))
	}
	if app.sessions != nil {
		errs = append(errs, app.sessions.Close())
	}
	if app.store != nil {
		errs = append(errs, app.store.Close())
	}
	if app.logCloser != nil {
		errs = append(errs, app.logCloser.Close())
	}
	return errors.Join(errs...)
}
