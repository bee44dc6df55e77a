package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oncodose/treatment-api/internal/handler"
	authhandler "github.com/oncodose/treatment-api/internal/handler/auth"
	oncologisthandler "github.com/oncodose/treatment-api/internal/handler/oncologist"
	patienthandler "github.com/oncodose/treatment-api/internal/handler/patient"
	simulationhandler "github.com/oncodose/treatment-api/internal/handler/simulation"
	"github.com/oncodose/treatment-api/internal/middleware"
	"github.com/oncodose/treatment-api/internal/service/session"
	"github.com/oncodose/treatment-api/pkg/auth"
	"github.com/oncodose/treatment-api/pkg/logger"
)

type routerMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	m := &routerMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *routerMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// New assembles the gin engine: middleware chain, public auth routes and the
// session-protected API.
func New(
	log *logger.Logger,
	jwtService *auth.JWTService,
	sessions *session.Service,
	authH *authhandler.Handler,
	patientH *patienthandler.Handler,
	oncologistH *oncologisthandler.Handler,
	simulationH *simulationhandler.Handler,
	registry *prometheus.Registry,
	rateLimitRPS float64,
	rateLimitBurst int,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()
	r := gin.New()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(newRouterMetrics(registry).middleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	r.POST("/auth/login", middleware.LoginRateLimiter(rateLimitRPS, rateLimitBurst), authH.Login)
	r.POST("/oncologists", oncologistH.Register)

	api := r.Group("/", middleware.Auth(jwtService, sessions))
	{
		api.POST("/auth/logout", authH.Logout)

		api.GET("/oncologists/me", oncologistH.Me)
		api.DELETE("/oncologists/:username", middleware.RequireAdmin(), oncologistH.Delete)

		api.GET("/patients", patientH.List)
		api.POST("/patients", patientH.Save)
		api.GET("/patients/:id", patientH.Get)
		api.DELETE("/patients/:id", patientH.Delete)

		api.POST("/patients/:id/simulation", simulationH.Start)
		api.GET("/patients/:id/simulation", simulationH.Status)
	}

	return r
}
