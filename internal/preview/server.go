// Package preview serves a generated project over HTTP.
package preview

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"appforge/pkg/logx"
	"appforge/pkg/sandbox"
)

// PreviewPrefix is the URL prefix under which the sandbox tree is served.
const PreviewPrefix = "/preview"

// FilesResponse is the body of GET /api/files.
type FilesResponse struct {
	Root  string   `json:"root"`
	Files []string `json:"files"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Server serves the sandbox tree, its file index and metrics.
type Server struct {
	echo   *echo.Echo
	store  *sandbox.Store
	logger *logx.Logger
}

// NewServer creates a server over store. Metrics are exposed from gatherer
// when it is non-nil.
func NewServer(store *sandbox.Store, gatherer prometheus.Gatherer) (*Server, error) {
	if store == nil {
		return nil, errors.New("sandbox store is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		store:  store,
		logger: logx.NewLogger("preview"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			s.logger.Debug("%s %s -> %d (%s) [%s]",
				c.Request().Method, c.Request().RequestURI, c.Response().Status,
				time.Since(start), c.Response().Header().Get(echo.HeaderXRequestID))
			return err
		}
	})

	e.GET("/health", s.handleHealth)
	e.GET("/api/files", s.handleFiles)
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, PreviewPrefix+"/")
	})
	e.GET(PreviewPrefix, func(c echo.Context) error {
		return c.Redirect(http.StatusFound, PreviewPrefix+"/")
	})
	e.GET(PreviewPrefix+"/*", s.handleFile)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleFiles(c echo.Context) error {
	root, err := s.store.Root()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	files, err := s.store.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, FilesResponse{Root: root, Files: files})
}

// handleFile serves one file of the tree. Directories fall back to their
// index.html.
func (s *Server) handleFile(c echo.Context) error {
	rel, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path")
	}
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		rel = "index.html"
	}

	path, err := s.store.Resolve(rel)
	if err != nil {
		s.logger.Warn("Rejected preview path %q: %v", rel, err)
		return echo.ErrNotFound
	}
	info, err := os.Stat(path)
	if err != nil {
		return echo.ErrNotFound
	}
	if info.IsDir() {
		path += string(os.PathSeparator) + "index.html"
		if _, err := os.Stat(path); err != nil {
			return echo.ErrNotFound
		}
	}
	return c.File(path)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Serving preview on http://%s%s/", addr, PreviewPrefix)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
