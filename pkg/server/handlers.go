package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"sql-profiler/pkg/logs"
	"sql-profiler/pkg/profile"
)

// ProfileParams are the query parameters accepted by the profile endpoints.
type ProfileParams struct {
	Format   string `schema:"format"`
	Sort     string `schema:"sort"`
	Order    string `schema:"order"`
	Top      int    `schema:"top"`
	StripIDs bool   `schema:"strip_ids"`
	View     string `schema:"view"`
}

type profileRequest struct {
	format logs.Format
	opts   profile.Options
	view   profile.View
}

func (s *Server) parseParams(r *http.Request) (profileRequest, error) {
	var params ProfileParams
	if err := s.decoder.Decode(&params, r.URL.Query()); err != nil {
		return profileRequest{}, fmt.Errorf("invalid query parameters: %w", err)
	}

	format, err := logs.ParseFormat(params.Format)
	if err != nil {
		return profileRequest{}, err
	}
	sortBy, err := profile.ParseSortKey(params.Sort)
	if err != nil {
		return profileRequest{}, err
	}
	order, err := profile.ParseOrder(params.Order)
	if err != nil {
		return profileRequest{}, err
	}
	view, err := profile.ParseView(params.View)
	if err != nil {
		return profileRequest{}, err
	}
	if params.Top < 0 {
		return profileRequest{}, fmt.Errorf("top must not be negative, got %d", params.Top)
	}

	return profileRequest{
		format: format,
		opts: profile.Options{
			StripIDs: params.StripIDs,
			SortBy:   sortBy,
			Order:    order,
			TopN:     params.Top,
		},
		view: view,
	}, nil
}

// analyze reads the request body and profiles it. On failure the error
// response has already been written.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*profile.Report, profile.View, bool) {
	req, err := s.parseParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, 0, false
	}

	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	records, err := logs.ReadRecords(body, req.format)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return nil, 0, false
		}
		writeError(w, http.StatusBadRequest, err)
		return nil, 0, false
	}

	report, err := profile.Analyze(records, req.opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, 0, false
	}

	slog.Debug("profiled upload", "format", req.format, "queries", report.TotalQueries(), "groups", len(report.Groups))
	return report, req.view, true
}

// HandleProfile returns the full report as JSON.
func (s *Server) HandleProfile(w http.ResponseWriter, r *http.Request) {
	report, _, ok := s.analyze(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleProfileSQL returns the rendered blocks as text.
func (s *Server) HandleProfileSQL(w http.ResponseWriter, r *http.Request) {
	report, view, ok := s.analyze(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := report.Print(w, view); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	slog.Debug("request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
