// Package server assembles the HTTP surface: the auth-gated websocket
// endpoint, the user API, and the ops endpoints.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/SkeletonSFD/DnD-Project/internal/auth"
	"github.com/SkeletonSFD/DnD-Project/internal/presence"
	"github.com/SkeletonSFD/DnD-Project/internal/server/middleware"
	"github.com/SkeletonSFD/DnD-Project/internal/session"
	"github.com/SkeletonSFD/DnD-Project/internal/userstore"
	"github.com/SkeletonSFD/DnD-Project/pkg/config"
	"github.com/SkeletonSFD/DnD-Project/pkg/transport"
)

type App struct {
	logger   *slog.Logger
	registry *presence.Registry
	handler  *session.Handler
	wg       sync.WaitGroup
	http     *http.Server
	config   *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, users userstore.Store) *App {
	registry := presence.NewRegistry(logger)
	broadcaster := session.NewBroadcaster(registry, logger)
	handler := session.NewHandler(registry, broadcaster, logger)

	verifier := auth.NewVerifier(cfg.Server.Auth.JWTSecret, users, logger)
	gate := auth.NewGate(verifier)
	issuer := auth.NewIssuer(cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL)

	app := &App{
		logger:   logger,
		registry: registry,
		handler:  handler,
		config:   cfg,
		ctx:      rootCtx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.Chain(
		http.HandlerFunc(app.upgradeHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
		middleware.NewAuthMiddleware(logger, gate),
		middleware.NewConnectionLimiter(logger, registry.UserConnectionCount, cfg.Server.ConnectionLimit.MaxPerUser),
	))

	api := newAPI(logger, users, issuer, verifier)
	api.routes(mux)

	mux.HandleFunc("GET /health", app.healthHandler)
	mux.HandleFunc("GET /stats", app.statsHandler)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler runs after the gate has admitted the connection. The order
// is fixed: accept the socket, register presence, announce, then pump. A
// registration failure closes the socket before anything was announced.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("username", reqMeta.Identity.Username),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		connLogger.Error("failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig{ReadTimeout: a.config.Transport.ReadTimeout},
		a.logger,
	)

	if err := a.registry.Register(conn.ID(), reqMeta.Identity, conn); err != nil {
		connLogger.Error("failed to register connection", slog.Any("error", err))
		conn.Close(err)
		return
	}

	conn.SetOnMessageHandler(a.handler.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.handler.HandleDisconnect(id)
	})

	connLogger.Info("user connected", slog.Int64("userID", reqMeta.Identity.UserID))
	a.handler.HandleConnect(conn.ID())
	conn.Run()
	<-conn.Done()
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) statsHandler(w http.ResponseWriter, _ *http.Request) {
	conns, rooms := a.registry.Counts()
	writeJSON(w, http.StatusOK, map[string]int{
		"connections": conns,
		"rooms":       rooms,
	})
}

// Shutdown runs the graceful shutdown sequence. The root context is already
// cancelled by the time this is called, so live connections are unwinding;
// waiting on the group guarantees every onClose cleanup has run.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.wg.Wait()
	a.logger.Info("server shut down gracefully")
	return nil
}
