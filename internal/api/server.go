// Package api exposes the trading service over HTTP.
package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"copytrader/internal/config"
	"copytrader/internal/logging"
	"copytrader/internal/models"
	"copytrader/internal/resilience"
	"copytrader/internal/trading"
)

// SignalSink accepts injected signals. stream.Hub implements it.
type SignalSink interface {
	PublishContext(ctx context.Context, sig models.CopySignal) error
}

// Deps are the collaborators behind the routes. Sink and Health are optional:
// without a sink injected signals are routed synchronously.
type Deps struct {
	Service *trading.Service
	Sink    SignalSink
	Health  *resilience.Checker
	Logger  zerolog.Logger
}

// NewServer builds the gin engine and an http.Server bound to cfg.Addr.
func NewServer(cfg config.HTTPConfig, deps Deps) (*gin.Engine, *http.Server) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logging.WithComponent(deps.Logger, "api")))

	h := &handler{
		svc:    deps.Service,
		sink:   deps.Sink,
		health: deps.Health,
	}
	if cfg.SignalRate > 0 {
		h.signalLimit = resilience.NewRateLimiter(cfg.SignalRate, cfg.SignalBurst)
	}
	h.register(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return r, srv
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		logging.LogRequest(logger, c.Request.Method, path, c.Writer.Status(), time.Since(start), err)
	}
}

// rateLimit rejects requests with 429 once limiter is exhausted.
func rateLimit(limiter *resilience.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow() {
			c.Next()
			return
		}
		if wait := limiter.RetryAfter(); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many signals"})
	}
}
