package veracity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/image-veracity/veracity/imagehash"

	"github.com/google/trillian"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"gorm.io/gorm"
)

// LeafQueuer submits raw leaf data to a transparency log tree. Implemented by
// tlog.Client; a nil LeafQueuer on the server disables log submission.
type LeafQueuer interface {
	QueueLeaf(ctx context.Context, treeID int64, value, extra []byte) (*trillian.LogLeaf, error)
}

type Server struct {
	db         *gorm.DB
	echo       *echo.Echo
	httpd      *http.Server
	logger     *slog.Logger
	hasher     *imagehash.Hasher
	tlog       LeafQueuer
	treeID     int64
	tiles      *TileMap
	imageCache *lru.Cache[imagehash.CryptoHash, *Image]
}

type Config struct {
	Logger      *slog.Logger
	Tlog        LeafQueuer
	TreeID      int64
	HashWorkers int
	CacheSize   int
}

func NewServer(db *gorm.DB, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("running database migrations")
	if err := db.AutoMigrate(&Image{}); err != nil {
		return nil, fmt.Errorf("database migration: %w", err)
	}

	cacheSize := config.CacheSize
	if cacheSize == 0 {
		cacheSize = 5_000
	}
	cache, err := lru.New[imagehash.CryptoHash, *Image](cacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:         db,
		logger:     logger,
		hasher:     imagehash.NewHasher(config.HashWorkers),
		tlog:       config.Tlog,
		treeID:     config.TreeID,
		tiles:      NewTileMap(),
		imageCache: cache,
	}
	if s.tlog == nil {
		logger.Warn("no transparency log configured, leaves will not be queued")
	}
	return s, nil
}

func (s *Server) RunAPI(listen string) error {
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("5M"))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/", s.handleUploadForm)
	e.POST("/", s.handleUpload)
	e.GET("/images/:hash", s.handleGetImage)
	e.GET("/_health", s.handleHealthCheck)

	s.echo = e
	s.httpd = &http.Server{
		Handler:        e,
		Addr:           listen,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	s.logger.Info("starting API server", "bind", listen)
	if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) RunMetrics(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	s.logger.Info("starting metrics server", "bind", listen)
	return http.ListenAndServe(listen, mux)
}

func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.httpd.Shutdown(ctx)
	s.hasher.Shutdown()
	return err
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	if err := s.db.Exec("SELECT 1").Error; err != nil {
		s.logger.Error("healthcheck database query failed", "err", err)
		return c.JSON(500, GenericStatus{Status: "error", Daemon: "veracity", Message: "database not available"})
	}
	return c.JSON(200, GenericStatus{Status: "ok", Daemon: "veracity"})
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		s.logger.Warn("veracity-http-internal-error", "err", err)
	}
	if !c.Response().Committed {
		c.JSON(code, map[string]any{"error": message})
	}
}
