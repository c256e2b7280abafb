package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"patientbrief/internal/analysis"
	"patientbrief/internal/catalog"
	"patientbrief/internal/domain"
	"patientbrief/internal/record"
	"patientbrief/internal/summarizer"

	"github.com/labstack/echo/v4"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

type errorResponse struct {
	Error string `json:"error"`
}

type filesResponse struct {
	Files []string `json:"files"`
}

// analyzeResponse keeps the field names browsers of the upload page already
// read.
type analyzeResponse struct {
	ExtractedData         domain.PatientSummary `json:"extracted_data"`
	ClinicalTrialsMatched string                `json:"Clinical_trials_matched"`
	ReadablePatientData   string                `json:"readble_patient_data"`
	TrialLinks            []string              `json:"trial_links"`
	RunID                 string                `json:"run_id"`
}

type runsResponse struct {
	Runs []domain.Run `json:"runs"`
}

func (s *Server) handleHome(c echo.Context) error {
	files, err := s.documents.List()
	if err != nil {
		s.log.ErrorContext(c.Request().Context(), "Failed to list samples",
			"error", err)

		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to list samples."})
	}

	if prefersHTML(c.Request().Header.Get(echo.HeaderAccept)) {
		return c.Render(http.StatusOK, homeView, filesResponse{Files: files})
	}

	return c.JSON(http.StatusOK, filesResponse{Files: files})
}

func (s *Server) handleAnalyze(c echo.Context) error {
	ctx := c.Request().Context()

	src, err := s.source(c)
	if err != nil {
		return s.errorJSON(c, err)
	}

	if src == nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No file uploaded or selected."})
	}

	result, err := s.analyzer.Analyze(ctx, *src)
	if err != nil {
		return s.errorJSON(c, err)
	}

	links := result.Narrative.TrialLinks
	if links == nil {
		links = []string{}
	}

	return c.JSON(http.StatusOK, analyzeResponse{
		ExtractedData:         result.Summary,
		ClinicalTrialsMatched: result.Narrative.TrialMatches,
		ReadablePatientData:   result.Narrative.Report,
		TrialLinks:            links,
		RunID:                 result.ID,
	})
}

// source resolves the submitted document. An uploaded file takes precedence
// over a selected sample; nil means neither was given.
func (s *Server) source(c echo.Context) (*analysis.Source, error) {
	if fh, err := c.FormFile("file"); err == nil && fh.Filename != "" {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()

		_, data, err := s.documents.SaveUpload(fh.Filename, f)
		if err != nil {
			return nil, fmt.Errorf("save upload: %w", err)
		}

		return &analysis.Source{Name: fh.Filename, Data: data}, nil
	}

	name := strings.TrimSpace(c.FormValue("existingFile"))
	if name == "" {
		return nil, nil
	}

	data, err := s.documents.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open sample: %w", err)
	}

	return &analysis.Source{Name: name, Data: data}, nil
}

func (s *Server) handleRuns(c echo.Context) error {
	limit := defaultRunsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer."})
		}
		limit = min(parsed, maxRunsLimit)
	}

	if s.runs == nil {
		return c.JSON(http.StatusOK, runsResponse{Runs: []domain.Run{}})
	}

	runs, err := s.runs.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.log.ErrorContext(c.Request().Context(), "Failed to list runs",
			"error", err)

		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to list runs."})
	}

	if runs == nil {
		runs = []domain.Run{}
	}

	return c.JSON(http.StatusOK, runsResponse{Runs: runs})
}

func (s *Server) errorJSON(c echo.Context, err error) error {
	status, message := errorStatus(err)

	level := s.log.WarnContext
	if status >= http.StatusInternalServerError {
		level = s.log.ErrorContext
	}
	level(c.Request().Context(), "Failed to analyze document",
		"error", err,
		"status", status,
		"requestID", c.Response().Header().Get(echo.HeaderXRequestID))

	return c.JSON(status, errorResponse{Error: message})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, record.ErrMalformedDocument):
		return http.StatusBadRequest, "The document is not a valid patient bundle."
	case errors.Is(err, catalog.ErrInvalidName):
		return http.StatusBadRequest, "The file name is not valid."
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "The selected file was not found."
	case errors.Is(err, summarizer.ErrExternalService):
		return http.StatusBadGateway, "The narrative service failed."
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

// prefersHTML reports whether the Accept header ranks text/html above
// application/json.
func prefersHTML(accept string) bool {
	htmlAt, jsonAt := -1, -1

	for i, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")

		switch strings.ToLower(strings.TrimSpace(mediaType)) {
		case echo.MIMETextHTML:
			if htmlAt < 0 {
				htmlAt = i
			}
		case echo.MIMEApplicationJSON:
			if jsonAt < 0 {
				jsonAt = i
			}
		}
	}

	return htmlAt >= 0 && (jsonAt < 0 || htmlAt < jsonAt)
}
