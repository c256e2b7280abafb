package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"patientbrief/internal/analysis"
	"patientbrief/internal/domain"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const (
	bodyLimit = "25M"
	homeView  = "home.html"
)

//go:embed templates/*.html
var templatesFS embed.FS

type Analyzer interface {
	Analyze(ctx context.Context, src analysis.Source) (*domain.Analysis, error)
}

type Documents interface {
	List() ([]string, error)
	Open(name string) ([]byte, error)
	SaveUpload(name string, r io.Reader) (string, []byte, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

// Server is the HTTP surface for uploads and sample selection.
type Server struct {
	echo      *echo.Echo
	analyzer  Analyzer
	documents Documents
	runs      RunLister
	log       *slog.Logger
}

// New builds the server and registers its routes. runs may be nil, in which
// case GET /runs reports an empty history.
func New(analyzer Analyzer, documents Documents, runs RunLister, log *slog.Logger) (*Server, error) {
	views, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = &templateRenderer{views: views}

	e.Use(Recovery(log))
	e.Use(echomw.RequestID())
	e.Use(Logger(log))
	e.Use(echomw.BodyLimit(bodyLimit))

	s := &Server{
		echo:      e,
		analyzer:  analyzer,
		documents: documents,
		runs:      runs,
		log:       log,
	}

	e.GET("/", s.handleHome)
	e.POST("/", s.handleAnalyze)
	e.GET("/runs", s.handleRuns)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return s, nil
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info("HTTP server is started",
		"addr", addr)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

type templateRenderer struct {
	views *template.Template
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.views.ExecuteTemplate(w, name, data)
}
