package router

import (
	"github.com/gin-gonic/gin"

	"github.com/dtroode/authgate/internal/api/http/handler"
	"github.com/dtroode/authgate/internal/api/http/middleware"
	"github.com/dtroode/authgate/internal/config"
	"github.com/dtroode/authgate/internal/logger"
	"github.com/dtroode/authgate/internal/metrics"
	"github.com/dtroode/authgate/internal/model"
)

const serviceName = "authgate"

// Router wires handlers and middleware into a gin engine.
type Router struct {
	authService    handler.AuthService
	tokenService   middleware.TokenService
	contextManager model.ContextManager
	metrics        *metrics.Metrics
	health         map[string]handler.Pinger
	config         config.HTTP
	logger         *logger.Logger
}

// New creates a new Router instance. health may be empty.
func New(
	authService handler.AuthService,
	tokenService middleware.TokenService,
	contextManager model.ContextManager,
	metrics *metrics.Metrics,
	health map[string]handler.Pinger,
	config config.HTTP,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:    authService,
		tokenService:   tokenService,
		contextManager: contextManager,
		metrics:        metrics,
		health:         health,
		config:         config,
		logger:         logger,
	}
}

// Register builds the engine with every route and middleware attached.
func (r *Router) Register() *gin.Engine {
	engine := gin.New()

	// Client IP comes from the edge header only; X-Forwarded-For is ignored.
	engine.TrustedPlatform = r.config.ClientIPHeader
	_ = engine.SetTrustedProxies(nil)

	logging := middleware.NewLogging(r.logger)
	engine.Use(
		middleware.Recovery(r.logger),
		logging.Handle,
		middleware.Metrics(r.metrics),
		middleware.CORS(),
		middleware.Timeout(r.config.RequestTimeout),
	)

	engine.HandleMethodNotAllowed = true
	engine.NoRoute(handler.NotFound)
	engine.NoMethod(handler.MethodNotAllowed)

	health := handler.NewHealth(serviceName, r.health, r.logger)
	engine.GET("/health", health.Check)
	engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	r.registerAuthRoutes(engine)

	return engine
}

func (r *Router) registerAuthRoutes(engine *gin.Engine) {
	authHandler := handler.NewAuth(r.authService, r.contextManager, r.metrics, r.logger)
	authenticate := middleware.NewAuthenticate(r.tokenService, r.contextManager, r.logger)

	auth := engine.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", authenticate.Handle, authHandler.Me)

		for _, path := range []string{"/register", "/login", "/refresh", "/me"} {
			auth.OPTIONS(path, authHandler.Preflight)
		}
	}
}
