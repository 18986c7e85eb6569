package server

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/mccoy88f/PlanarAllyPlus-sub001/internal/api/http"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/api/middleware"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/api/ws"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/bridge"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/extension"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/installer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/modal"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/notify"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/timer"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/domain/visibility"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/config"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/logging"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/infrastructure/monitoring"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/paths"
	"github.com/mccoy88f/PlanarAllyPlus-sub001/internal/shared/types"
)

const mb = int64(1024 * 1024)

// Server wraps the HTTP server and its domain components.
type Server struct {
	router    *gin.Engine
	registry  *extension.Manager
	modals    *modal.Manager
	timers    *timer.Service
	windowHub *ws.WindowHub
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer assembles the extension host.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	layout := paths.NewLayout(cfg.Paths.DataDir, cfg.Paths.ExtensionsDir)

	logger.Info("Initializing extension host",
		zap.String("port", cfg.Server.Port),
		zap.String("extensions_dir", layout.ExtensionsDir),
	)

	metrics := monitoring.NewMetrics()

	// Domain layer: visibility feeds the registry, the registry feeds
	// the installer, and modal state gates both close paths.
	visStore := visibility.NewStore(layout.VisibilityFile(), logger)
	registry := extension.NewManager(layout, visStore, logger)
	modals := modal.NewManager(cfg.Extensions.BackgroundID).WithMetrics(metrics)
	inst := installer.New(layout, registry, modals, visStore, cfg.Extensions.MaxArchiveMB*mb, logger)

	// Timer service with durable state and cross-window replication.
	loopback := notify.NewLoopback()
	timers := timer.NewService(timer.NewStore(layout.TimersFile()), loopback, logger).
		WithInterval(cfg.Timers.TickInterval()).
		WithMetrics(metrics)
	if err := timers.Load(); err != nil {
		logger.Warn("Failed to restore timers", zap.Error(err))
	}

	// Bridge: the WS handler relays guest dialogs to hosts and the
	// dispatcher routes everything else.
	bridgeHandler := ws.NewBridgeHandler(metrics, logger)
	dispatcher := bridge.NewDispatcher(modals, bridgeHandler, metrics, logger)
	bridgeHandler.Bind(dispatcher)

	windowHub := ws.NewWindowHub(timers, loopback, metrics, logger)
	timers.OnComplete(func(c types.TimerCompletion) {
		bridgeHandler.Relay(types.Message{
			Type:    "timer-complete",
			ID:      c.ID,
			Message: c.Name,
		})
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(
		registry, inst, modals, visStore, timers, layout,
		cfg.Extensions.MaxArchiveMB*mb, cfg.Extensions.InstallingURL, metrics, logger,
	)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/api/stats", handlers.Stats)

	// Extension management
	router.GET("/api/extensions", handlers.ListExtensions)
	router.POST("/api/extensions/install/zip", handlers.InstallZip)
	router.POST("/api/extensions/install/url", handlers.InstallURL)
	router.POST("/api/extensions/uninstall", handlers.Uninstall)
	router.PATCH("/api/extensions/visibility", handlers.SetVisibility)
	router.GET("/api/extensions/:folder", handlers.GetExtension)
	router.GET("/api/extensions/:folder/ui/*filepath", handlers.ServeUI)

	if cfg.Proxy.Enabled {
		proxy := apihttp.NewProxy(cfg.Proxy.MaxBodyMB*mb, logger)
		router.GET("/api/extensions/proxy", proxy.Handle)
	}

	// Modal lifecycle
	router.GET("/api/modals", handlers.ListModals)
	router.POST("/api/modals/:folder/open", handlers.OpenModal)
	router.POST("/api/modals/:folder/focus", handlers.FocusModal)
	router.POST("/api/modals/:folder/close", handlers.CloseModal)
	router.POST("/api/modals/:folder/request-close", handlers.RequestCloseModal)
	router.POST("/api/modals/:folder/open-sheet", handlers.ConsumeOpenSheet)

	// Timers
	router.GET("/api/timers", handlers.ListTimers)

	// WebSocket channels
	router.GET("/ws/bridge", bridgeHandler.HandleConnection)
	router.GET("/ws/windows", windowHub.HandleConnection)

	// Metrics
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:    router,
		registry:  registry,
		modals:    modals,
		timers:    timers,
		windowHub: windowHub,
		logger:    logger,
		config:    cfg,
		metrics:   metrics,
	}, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.windowHub.Close()
	s.timers.Close()

	s.logger.Sync()
	return nil
}
