package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/middleware"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type AuthHandler interface {
	Handler
	RegisterProtectedRoutes(*gin.RouterGroup)
}

type AppointmentHandler interface {
	Handler
	RegisterReceptionRoutes(*gin.RouterGroup)
	RegisterDoctorRoutes(*gin.RouterGroup)
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Health       Handler
	Auth         AuthHandler
	Directory    Handler
	Appointments AppointmentHandler
	Doctor       Handler
	Admin        Handler
}

type RouterConfig struct {
	Mode        string
	Timeout     time.Duration
	RateLimit   *middleware.RateLimiterConfig
	CORSConfig  middleware.CORSConfig
	MaxBodySize int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *metrics.Metrics
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, log *logger.Logger, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  m,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		r.metricsMiddleware(),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(config.Timeout),
		middleware.SizeLimit(config.MaxBodySize),
	)

	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.handlers.Health.RegisterRoutes(api)

	// Public routes
	r.handlers.Auth.RegisterRoutes(api)
	r.handlers.Directory.RegisterRoutes(api)
	r.handlers.Appointments.RegisterRoutes(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.handlers.Auth.RegisterProtectedRoutes(protected)

	doctor := protected.Group("/doctor", r.auth.RequireRole(model.RoleDoctor))
	r.handlers.Doctor.RegisterRoutes(doctor)
	r.handlers.Appointments.RegisterDoctorRoutes(doctor)

	reception := protected.Group("/reception", r.auth.RequireRole(model.RoleReceptionist, model.RoleAdmin))
	r.handlers.Appointments.RegisterReceptionRoutes(reception)

	admin := protected.Group("/admin", r.auth.RequireRole(model.RoleAdmin))
	r.handlers.Admin.RegisterRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// metricsMiddleware records per-route counts and latency. Unmatched paths are
// folded into one label so scanners cannot blow up cardinality.
func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.HTTPLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
		r.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
