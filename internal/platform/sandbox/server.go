package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/schoolhealth/nurse-console/internal/domain/inventory"
	"github.com/schoolhealth/nurse-console/internal/domain/medrequest"
	"github.com/schoolhealth/nurse-console/internal/domain/vaccination"
	"github.com/schoolhealth/nurse-console/internal/platform/auth"
	"github.com/schoolhealth/nurse-console/internal/platform/db"
	"github.com/schoolhealth/nurse-console/internal/platform/envelope"
	"github.com/schoolhealth/nurse-console/internal/platform/gateway"
	"github.com/schoolhealth/nurse-console/internal/platform/middleware"
	"github.com/schoolhealth/nurse-console/internal/platform/store"
	"github.com/schoolhealth/nurse-console/internal/platform/websocket"
)

// Options configure a sandbox Server.
type Options struct {
	Addr string
	// SigningKey enables HS256 bearer authentication. When empty DevAuth
	// must be set.
	SigningKey []byte
	Issuer     string
	// DevAuth grants every unauthenticated caller admin access.
	DevAuth bool
	// IssueTokens exposes POST /auth/token. Requires SigningKey.
	IssueTokens      bool
	CORSOrigins      []string
	RateLimit        middleware.RateLimitConfig
	Thresholds       inventory.Thresholds
	MinJustification int
	// Pool, when set, stores records in PostgreSQL. The schema must already
	// be migrated.
	Pool *pgxpool.Pool
	// Seed, when set, is generated before the server starts.
	Seed   *SeedConfig
	Clock  clock.PassiveClock
	Logger zerolog.Logger
}

// Server is the sandbox console backend.
type Server struct {
	echo     *echo.Echo
	opts     Options
	hub      *websocket.Hub
	Services Services
}

func New(ctx context.Context, opts Options) (*Server, error) {
	if len(opts.SigningKey) == 0 && !opts.DevAuth {
		return nil, errors.New("sandbox needs a signing key or development auth")
	}
	if opts.IssueTokens && len(opts.SigningKey) == 0 {
		return nil, errors.New("issuing tokens requires a signing key")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Thresholds == (inventory.Thresholds{}) {
		opts.Thresholds = inventory.DefaultThresholds()
	}

	items, requests, sessions := inventory.NewMemoryRepo(), medrequest.NewMemoryRepo(), vaccination.NewMemoryRepo()
	if opts.Pool != nil {
		items = inventory.NewRepo(store.NewPostgres[inventory.Item](opts.Pool, gateway.KindInventory))
		requests = medrequest.NewRepo(store.NewPostgres[medrequest.Request](opts.Pool, gateway.KindMedicationRequests))
		sessions = vaccination.NewRepo(store.NewPostgres[vaccination.Session](opts.Pool, gateway.KindVaccinationSessions))
	}
	svcs := Services{
		Inventory: inventory.NewService(items, opts.Thresholds),
		Requests:  medrequest.NewService(requests),
		Sessions:  vaccination.NewService(sessions),
	}
	if opts.Pool != nil {
		if err := svcs.Requests.Resume(ctx); err != nil {
			return nil, err
		}
	}
	svcs.Inventory.SetClock(opts.Clock)
	svcs.Requests.SetClock(opts.Clock)
	svcs.Sessions.SetClock(opts.Clock)
	if opts.MinJustification > 1 {
		svcs.Inventory.SetMachine(inventory.Machine.WithMinJustification(opts.MinJustification))
		svcs.Requests.SetMachine(medrequest.Machine.WithMinJustification(opts.MinJustification))
		svcs.Sessions.SetMachine(vaccination.Machine.WithMinJustification(opts.MinJustification))
	}

	if opts.Seed != nil {
		if _, err := NewSeeder(*opts.Seed, opts.Clock, opts.Logger).Generate(ctx, svcs); err != nil {
			return nil, fmt.Errorf("seed sandbox: %w", err)
		}
	}

	s := &Server{opts: opts, hub: websocket.NewHub(opts.Logger), Services: svcs}
	s.echo = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	logger := s.opts.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = envelope.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if len(s.opts.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: s.opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		}))
	}
	e.Use(echomw.BodyLimit("1M"))

	e.GET("/health", s.health)
	if s.opts.IssueTokens {
		e.POST("/auth/token", s.issueToken)
	}

	api := e.Group("/api/v1")
	if len(s.opts.SigningKey) > 0 {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     s.opts.Issuer,
			SigningKey: s.opts.SigningKey,
			Skipper:    auth.AuthSkipper,
		}))
	}
	if s.opts.DevAuth {
		api.Use(auth.DevAuthMiddleware())
	}
	api.Use(middleware.RateLimit(s.opts.RateLimit))
	api.Use(middleware.Audit(logger, eventRecorder(s.hub)))

	inventory.NewHandler(s.Services.Inventory).RegisterRoutes(api)
	medrequest.NewHandler(s.Services.Requests).RegisterRoutes(api)
	vaccination.NewHandler(s.Services.Sessions).RegisterRoutes(api)
	NewSeedHandler(s.Services, s.opts.Clock, logger).RegisterRoutes(api)
	websocket.NewHandler(s.hub, s.opts.CORSOrigins).RegisterRoutes(api)

	return e
}

type healthResponse struct {
	Status   string        `json:"status"`
	Storage  string        `json:"storage"`
	Clients  int           `json:"clients"`
	Database *db.PoolStats `json:"database,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	resp := healthResponse{Status: "ok", Storage: "memory", Clients: s.hub.ClientCount()}
	if s.opts.Pool == nil {
		return envelope.OK(c, http.StatusOK, resp, "")
	}
	resp.Storage = "postgres"
	stats, err := db.Check(c.Request().Context(), s.opts.Pool)
	resp.Database = stats
	if err != nil {
		s.opts.Logger.Error().Err(err).Msg("database health check failed")
		resp.Status = "unavailable"
		return envelope.OK(c, http.StatusServiceUnavailable, resp, err.Error())
	}
	return envelope.OK(c, http.StatusOK, resp, "")
}

type tokenRequest struct {
	Subject string   `json:"subject"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
}

func (s *Server) issueToken(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return envelope.Fail(c, http.StatusBadRequest, err.Error())
	}
	if req.Subject == "" {
		return envelope.Fail(c, http.StatusBadRequest, "subject is required")
	}
	if len(req.Roles) == 0 {
		req.Roles = []string{auth.RoleNurse}
	}
	token, err := auth.IssueToken(s.opts.SigningKey, auth.TokenRequest{
		Subject: req.Subject,
		Name:    req.Name,
		Roles:   req.Roles,
		Issuer:  s.opts.Issuer,
	}, s.opts.Clock.Now())
	if err != nil {
		return envelope.Error(c, err)
	}
	return envelope.OK(c, http.StatusOK, map[string]string{"token": token}, "")
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.opts.Logger.Info().Str("addr", s.opts.Addr).Msg("starting sandbox server")
		if err := s.echo.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.opts.Logger.Info().Msg("shutting down sandbox server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
