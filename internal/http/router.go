package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"access-bot-backend/internal/common/logger"
	mw "access-bot-backend/internal/http/middleware"
)

// HealthCheck is one readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires the HTTP surface to the services.
type Deps struct {
	Debug       bool
	CORSOrigins []string

	Checks   []HealthCheck
	Gatherer prometheus.Gatherer

	// WebhookToken is the provider API token; empty disables the webhook.
	WebhookToken string
	Webhooks     WebhookSink

	// BotToken validates Mini App init-data for the staff API.
	BotToken    string
	InitDataTTL time.Duration
	Staff       StaffAPI
}

// NewRouter builds the gin engine with routes and middlewares wired.
func NewRouter(d Deps) *gin.Engine {
	if !d.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(), mw.Recovery())

	// CORS for the staff Mini App
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", mw.InitDataHeader, mw.RequestIDHeader},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		MaxAge:       12 * time.Hour,
	}))

	health := &healthHandlers{checks: d.Checks}
	r.GET("/health", health.health)
	r.GET("/live", health.live)
	r.GET("/ready", health.ready)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.WebhookToken != "" && d.Webhooks != nil {
		wh := &webhookHandlers{token: d.WebhookToken, sink: d.Webhooks}
		r.POST("/webhooks/cryptopay", wh.cryptoPay)
	}

	if d.Staff != nil {
		sh := &staffHandlers{staff: d.Staff}
		api := r.Group("/api/v1/staff", mw.InitData(d.BotToken, d.InitDataTTL))
		api.GET("/queue", sh.queue)
		api.POST("/accounts/:id/approve", sh.approve)
		api.POST("/accounts/:id/deny", sh.deny)
	}
	return r
}

// Server runs the router until shut down.
type Server struct {
	srv *nethttp.Server
}

func NewServer(addr string, handler nethttp.Handler) *Server {
	return &Server{srv: &nethttp.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start blocks serving requests. A graceful shutdown is not an error.
func (s *Server) Start() error {
	logger.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
