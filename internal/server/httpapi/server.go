// Package httpapi exposes the receiptkeeper services over HTTP using fiber.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

type UserService interface {
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Identify(ctx context.Context, accessToken string) (models.Identity, error)
	Register(ctx context.Context, caller models.Identity, in models.RegisterInput) (*models.User, error)
	RegisterPublic(ctx context.Context, in models.RegisterInput) (*models.User, error)
	List(ctx context.Context, caller models.Identity, filter models.UserFilter, page models.Page) (*models.UserPage, error)
	Me(ctx context.Context, caller models.Identity) (*models.User, error)
	Update(ctx context.Context, caller models.Identity, id int64, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, caller models.Identity, id int64) error
	SetProfilePicture(ctx context.Context, caller models.Identity, upload models.Upload) (*models.User, error)
}

type IngestService interface {
	Ingest(ctx context.Context, caller models.Identity, upload models.Upload) (*models.ReceiptView, error)
}

type ReceiptService interface {
	List(ctx context.Context, caller models.Identity, filter models.ReceiptFilter, page models.Page, sort models.Sort) (*models.ReceiptPage, error)
	Get(ctx context.Context, caller models.Identity, id int64) (*models.ReceiptView, error)
	CreateManual(ctx context.Context, caller models.Identity, in models.ReceiptInput) (*models.ReceiptView, error)
	Update(ctx context.Context, caller models.Identity, id int64, patch models.ReceiptPatch) (*models.ReceiptView, error)
	Delete(ctx context.Context, caller models.Identity, id int64) error
	Image(ctx context.Context, caller models.Identity, id int64) (*models.ReceiptImage, error)
}

type MarketService interface {
	Get(ctx context.Context, id int64) (*models.Market, error)
	List(ctx context.Context, filter models.MarketFilter, page models.Page) ([]*models.Market, error)
	Create(ctx context.Context, name, taxNumber string) (*models.Market, error)
	Update(ctx context.Context, id int64, name, taxNumber *string) (*models.Market, error)
	Delete(ctx context.Context, id int64) error
}

type StatsService interface {
	TotalSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) (float64, error)
	TotalReceipts(ctx context.Context, caller models.Identity, scope models.StatsScope) (int64, error)
	AverageReceiptValue(ctx context.Context, caller models.Identity, scope models.StatsScope) (float64, error)
	TopItems(ctx context.Context, caller models.Identity, scope models.StatsScope, limit int) ([]models.TopItem, error)
	WordCloud(ctx context.Context, caller models.Identity, scope models.StatsScope, limit int) ([]models.WordCloudItem, error)
	TimeSeries(ctx context.Context, caller models.Identity, scope models.StatsScope, kind models.SeriesKind, bucket models.Bucket) ([]models.TimeSeriesPoint, error)
	MarketTotalSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error)
	MarketTotalReceipts(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error)
	MarketAverageSpent(ctx context.Context, caller models.Identity, scope models.StatsScope) ([]models.MarketValue, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services groups everything the handlers call.
type Services struct {
	Users    UserService
	Ingest   IngestService
	Receipts ReceiptService
	Markets  MarketService
	Stats    StatsService
}

type Server struct {
	address      string
	app          *fiber.App
	svc          Services
	db           Pinger
	logger       logging.Logger
	validate     *validator.Validate
	queryTimeout time.Duration
}

func NewServer(cfg *config.Config, logger logging.Logger, svc Services, db Pinger) *Server {
	s := &Server{
		address:      cfg.EndpointAddrHTTP,
		svc:          svc,
		db:           db,
		logger:       logger.With("module", "http_server"),
		validate:     validator.New(),
		queryTimeout: cfg.QueryTimeout,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "receiptkeeper",
		BodyLimit:             cfg.MaxUploadSize,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
	s.app.Use(s.requestLogger)
	s.app.Use(recover.New())
	if cfg.RequestsPerSecond > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        cfg.RequestsPerSecond,
			Expiration: time.Second,
			Next: func(c *fiber.Ctx) bool {
				return c.Path() == "/healthz"
			},
		}))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.health)

	a := s.app.Group("/auth")
	a.Post("/login", s.login)
	a.Post("/refresh", s.refresh)
	a.Post("/register/public", s.registerPublic)
	a.Post("/register", s.authRequired, s.register)
	a.Get("/users", s.authRequired, s.listUsers)
	a.Get("/me", s.authRequired, s.me)
	a.Put("/users/:id", s.authRequired, s.updateUser)
	a.Delete("/users/:id", s.authRequired, s.deleteUser)
	a.Post("/profile-picture", s.authRequired, s.uploadProfilePicture)

	r := s.app.Group("/receipt", s.authRequired)
	r.Post("/recognize", s.recognize)
	r.Get("/", s.listReceipts)
	r.Post("/receipt", s.createReceipt)
	r.Get("/receipt/:id", s.getReceipt)
	r.Put("/receipt/:id", s.updateReceipt)
	r.Delete("/receipt/:id", s.deleteReceipt)
	r.Get("/receipt/:id/image", s.receiptImage)
	r.Get("/markets", s.listMarkets)
	r.Post("/market", s.createMarket)
	r.Get("/market/:id", s.getMarket)
	r.Put("/market/:id", s.updateMarket)
	r.Delete("/market/:id", s.deleteMarket)
	r.Put("/:id", s.updateReceipt)

	st := s.app.Group("/statistic", s.authRequired)
	st.Get("/kpi/total-spent", s.totalSpent)
	st.Get("/kpi/total-receipts", s.totalReceipts)
	st.Get("/kpi/average-receipt-value", s.averageReceiptValue)
	st.Get("/kpi/top-items", s.topItems)
	st.Get("/timeseries/:kind", s.timeSeries)
	st.Get("/wordcloud", s.wordCloud)
	st.Get("/market/total-spent", s.marketTotalSpent)
	st.Get("/market/total-receipts", s.marketTotalReceipts)
	st.Get("/market/average-spent", s.marketAverageSpent)
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	return s.app.Listen(s.address)
}

func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.queryTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error(ctx, "health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"detail": "database unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
