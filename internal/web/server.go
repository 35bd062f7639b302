// Package web exposes the browser-facing HTTP surface of the console:
// the drive listing, the five storage actions, and the device-login
// polling endpoints.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"onedrive-console/internal/auth"
	"onedrive-console/internal/config"
	"onedrive-console/internal/graph"
)

//go:embed templates/*.html
var templateFS embed.FS

// Drive is the storage gateway consumed by the handlers.
// internal/graph.Drive is the real implementation.
type Drive interface {
	ListChildren(ctx context.Context) ([]graph.Item, error)
	Upload(ctx context.Context, remotePath string, r io.Reader) (*graph.Item, error)
	CreateFolder(ctx context.Context, remotePath string) (*graph.Item, error)
	Delete(ctx context.Context, remotePath string) error
	Download(ctx context.Context, remotePath string, w io.Writer) (int64, error)
}

// Authenticator is the credential provider consumed by the handlers.
// internal/auth.Provider is the real implementation.
type Authenticator interface {
	Flow() config.Flow
	Status() auth.Status
	StartDeviceLogin() error
}

// Server serves the console UI.
type Server struct {
	echo   *echo.Echo
	drive  Drive
	auth   Authenticator
	logger *slog.Logger
}

// NewServer assembles the echo instance, templates, middleware, and routes.
func NewServer(drive Drive, authenticator Authenticator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = newRenderer()

	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())

	s := &Server{
		echo:   e,
		drive:  drive,
		auth:   authenticator,
		logger: logger,
	}

	e.GET("/", s.index)
	e.POST("/auth/login", s.authLogin)
	e.GET("/auth/status", s.authStatus)
	e.POST("/upload", s.upload)
	e.POST("/mkdir", s.mkdir)
	e.GET("/delete", s.deleteItem)
	e.GET("/download", s.download)

	return s
}

// Start begins serving on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.logger.Info("console listening", slog.String("addr", addr))

	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the assembled routes for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// renderer adapts html/template to echo's Renderer interface.
type renderer struct {
	templates *template.Template
}

func newRenderer() *renderer {
	t := template.Must(template.New("").Funcs(template.FuncMap{
		"formatSize": formatSize,
		"formatTime": formatTime,
	}).ParseFS(templateFS, "templates/*.html"))

	return &renderer{templates: t}
}

func (r *renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// formatTime returns a compact timestamp for listing rows.
// The zero time renders as an em-free placeholder.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}
