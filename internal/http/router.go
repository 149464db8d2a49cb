// Package httpapi wires the HTTP transport (Gin) to the sync engine,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS, and
// rate limiting.
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggofiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/jsvana/carrier-wave-sub002/internal/adapter"
	"github.com/jsvana/carrier-wave-sub002/internal/config"
	"github.com/jsvana/carrier-wave-sub002/internal/http/handlers"
	"github.com/jsvana/carrier-wave-sub002/internal/http/middleware"
	"github.com/jsvana/carrier-wave-sub002/internal/services"
)

// corsAllowedHeaders are the request headers CORS exposes to browsers.
var corsAllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the ready-to-run trigger queue.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. CORS
func RegisterRoutes(r *gin.Engine, db *gorm.DB, reg *adapter.Registry, creds adapter.CredentialChecker, cfg config.Config) *services.TriggerQueue {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; trigger bodies are tiny) + gzip
	r.Use(limitBody(64 << 10))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:    corsAllowedHeaders,
			ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORS.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  corsAllowedHeaders,
			ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		}))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Optional Swagger UI
	if cfg.SwaggerEnabled {
		r.GET("/docs/*any", ginswagger.WrapHandler(swaggofiles.Handler))
	}

	// Dependency injection: services ← repo/db/registry
	mergeSvc := services.NewMergeService(db)
	mergeSvc.BucketWidth = cfg.Sync.DedupBucket

	syncSvc := services.NewSyncService(db, reg, creds, mergeSvc)
	syncSvc.FetchTimeout = cfg.Sync.FetchTimeout
	syncSvc.UploadTimeout = cfg.Sync.UploadTimeout
	syncSvc.UploadChunkSize = cfg.Sync.UploadChunkSize

	recSvc := services.NewReconcileService(db)
	h := handlers.New(syncSvc, recSvc, db)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Sync triggers
		api.POST("/sync", h.RunFullSync)
		api.POST("/sync/:service", h.RunServiceSync)
		api.POST("/reconcile", h.Reconcile)

		// Query surface
		api.GET("/stats", h.GetStats)
		api.GET("/contacts", h.ListContacts)
	}

	return services.NewTriggerQueue(cfg.Sync.QueueSize)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
