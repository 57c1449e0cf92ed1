package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
	"github.com/rotblauer/trajd/geo/trajectory"
	"github.com/rotblauer/trajd/params"
	"github.com/rotblauer/trajd/resultdb"
)

const lastBatchKey = "last"

type WebDaemon struct {
	Config         *params.WebDaemonConfig
	logger         *slog.Logger
	started        time.Time
	reducer        *trajectory.Reducer
	melodyInstance *melody.Melody
	feedComputed   event.FeedOf[BatchEvent]

	computeCache *lru.Cache[uint64, *computeResponse]
	lastBatch    *ttlcache.Cache[string, BatchEvent]
	store        *resultdb.DB
}

func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	size := config.CacheSize
	if size <= 0 {
		size = 1
	}
	computeCache, err := lru.New[uint64, *computeResponse](size)
	if err != nil {
		return nil, err
	}
	s := &WebDaemon{
		Config:       config,
		logger:       slog.With("d", "web"),
		started:      time.Now(),
		reducer:      &trajectory.Reducer{Workers: config.Workers},
		feedComputed: event.FeedOf[BatchEvent]{},
		computeCache: computeCache,
		lastBatch: ttlcache.New[string, BatchEvent](
			ttlcache.WithTTL[string, BatchEvent](config.LastTTL)),
	}
	if config.Store && config.DataDir != "" {
		s.store, err = resultdb.OpenDatadir(config.DataDir, false)
		if err != nil {
			return nil, err
		}
	}
	s.initMelody()
	return s, nil
}

// Run serves HTTP on the configured listener until ctx is done.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.melodyInstance.Close(); err != nil {
			s.logger.Warn("Failed to close websockets", "error", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info("Starting web daemon", "address", ln.Addr().String())
	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close releases the results store, if any.
func (s *WebDaemon) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(s.loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.melodyInstance.HandleRequest(w, r); err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
		}
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))
	apiJSONRoutes.Use(s.maxBodyMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/compute").HandlerFunc(s.handleCompute).Methods(http.MethodPost)
	apiJSONRoutes.Path("/points").HandlerFunc(s.handlePoints).Methods(http.MethodPost)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/batches").HandlerFunc(s.handleBatches).Methods(http.MethodGet)
	apiJSONRoutes.Path("/batches/{id}").HandlerFunc(s.handleBatch).Methods(http.MethodGet)

	return router
}
