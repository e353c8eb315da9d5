package app

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/cart"
	"github.com/drstein77/hostfront/internal/catalog"
	"github.com/drstein77/hostfront/internal/config"
	"github.com/drstein77/hostfront/internal/content"
	"github.com/drstein77/hostfront/internal/controllers"
	"github.com/drstein77/hostfront/internal/countries"
	"github.com/drstein77/hostfront/internal/dbkeeper"
	"github.com/drstein77/hostfront/internal/logger"
	"github.com/drstein77/hostfront/internal/reseller"
	"github.com/drstein77/hostfront/internal/session"
	"github.com/drstein77/hostfront/internal/storage"
	"github.com/drstein77/hostfront/internal/validation"
)

const janitorInterval = 10 * time.Minute

type Server struct {
	srv     *http.Server
	ctx     context.Context
	option  *config.Options
	storage *storage.MemoryStorage
	Log     *logger.Logger
}

// NewServer parses the options and wires every service behind the router.
func NewServer(ctx context.Context) (*Server, error) {
	// create and initialize a new option instance
	option := config.NewOptions()
	option.ParseFlags()
	if err := option.Validate(); err != nil {
		return nil, err
	}

	// get a new logger
	nLogger, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, err
	}

	server := &Server{ctx: ctx, option: option, Log: nLogger}
	server.srv = &http.Server{
		Addr:              option.RunAddr(),
		Handler:           server.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server, nil
}

func (server *Server) router() http.Handler {
	option := server.option

	// sessions live in memory and are written through to postgres when configured
	var keeper storage.Keeper
	if kp := dbkeeper.NewDBKeeper(server.ctx, option.DataBaseDSN, option.MigrationsPath, server.Log); kp != nil {
		keeper = kp
	}
	server.storage = storage.NewMemoryStorage(server.ctx, keeper, server.Log)
	go server.storage.RunJanitor(server.ctx, janitorInterval)

	secret := []byte(option.SessionSecret())
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
		server.Log.Warn("SESSION_SECRET is not set, sessions will not survive a restart")
	}
	codec := session.NewCodec(secret, session.CookieName, option.CookieSecure(), option.SessionTTL())
	sessions := session.NewManager(codec, server.storage, option.SessionTTL(), server.Log)

	client := reseller.NewClient(reseller.Config{
		BaseURL:   option.ResellerURL(),
		PLID:      option.PLID(),
		APIKey:    option.APIKey(),
		APISecret: option.APISecret(),
		Timeout:   option.UpstreamTimeout(),
		Retries:   option.UpstreamRetries(),
	}, nil, server.Log)
	if !client.Configured() {
		server.Log.Warn("RESELLER_PLID is not set, serving fallback data only")
	}

	v := validation.New()
	catalogSvc := catalog.NewService(client, nil, option.CatalogTTL(), server.Log)
	cartSvc := cart.NewService(client, sessions, v, option.CheckoutURL(), option.DefaultCurrency(), server.Log)

	if client.Configured() {
		go catalogSvc.Products(server.ctx, catalog.Market{Currency: option.DefaultCurrency(), ID: option.DefaultMarket()})
	}

	basecontr := controllers.NewBaseController(controllers.Deps{
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Sessions:  sessions,
		Countries: countries.Default(),
		Content:   content.Default(),
		Health:    server.storage,
		Validator: v,
		Origins:   option.CORSOrigins(),
	}, server.Log)
	return basecontr.Route()
}

// Serve runs the HTTP server until Shutdown is called.
func (server *Server) Serve() error {
	server.Log.Info("Running server", zap.String("address", server.srv.Addr))
	if err := server.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases the session store.
func (server *Server) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.srv.Shutdown(ctx); err != nil {
		server.Log.Error("Server shutdown error", zap.Error(err))
	}
	server.storage.Close()
	server.Log.Info("Server has been shut down")
	server.Log.Sync()
}
