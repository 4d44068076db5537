package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// reconcileBody is the JSON form of a reconcile request. When Headers is
// empty, the union of record keys is used.
type reconcileBody struct {
	Headers []string            `json:"headers"`
	Records []map[string]string `json:"records"`
}

// reconcileFailure is returned when reconciliation stops before classifying
// any row. Rows and Divisions are always empty.
type reconcileFailure struct {
	Rows       []core.MatchResult `json:"rows"`
	Divisions  []core.Division    `json:"divisions"`
	FatalError string             `json:"fatalError"`
	ErrorResponse
}

type ensureDivisionsBody struct {
	Genders []string `json:"genders"`
}

type divisionsResponse struct {
	Divisions []core.Division `json:"divisions"`
}

type commitBody struct {
	Rows []core.CommitRow `json:"rows"`
}

// commitResponse carries the report on success and on abort. On abort the
// error fields describe the row that stopped the batch.
type commitResponse struct {
	*core.CommitReport
	Error *ErrorResponse `json:"error,omitempty"`
}

// eventID parses the {eventID} URL parameter.
func eventID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "eventID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: event id %q", core.ErrInvalidRequest, raw)
	}
	return id, nil
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return nil
}

// handleReconcile classifies an uploaded roster against an event.
// Accepts a multipart "file" field holding CSV, or a JSON body.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	req, err := s.readRoster(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	req.EventID = id

	report, err := s.service.Reconcile(r.Context(), req)
	if err != nil {
		if errors.Is(err, core.ErrDivisionBootstrap) {
			body := errorBody(err)
			logError(r, err, http.StatusUnprocessableEntity, body.Code)
			writeJSON(w, http.StatusUnprocessableEntity, reconcileFailure{
				Rows:          []core.MatchResult{},
				Divisions:     []core.Division{},
				FatalError:    err.Error(),
				ErrorResponse: body,
			})
			return
		}
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// readRoster builds a ReconcileRequest from either body form.
func (s *Server) readRoster(w http.ResponseWriter, r *http.Request) (core.ReconcileRequest, error) {
	opts := s.service.ParseOptions()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		maxSize := s.cfg.Import.MaxFileSize
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return core.ReconcileRequest{}, err
			}
			return core.ReconcileRequest{}, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return core.ReconcileRequest{}, fmt.Errorf("%w: no file provided", core.ErrInvalidRequest)
		}
		defer file.Close()

		roster, err := core.ParseRoster(file, opts)
		if err != nil {
			return core.ReconcileRequest{}, err
		}
		return core.ReconcileRequest{Headers: roster.Headers, Records: roster.Records}, nil
	}

	var body reconcileBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		return core.ReconcileRequest{}, err
	}

	req := core.ReconcileRequest{Records: make([]core.RawRecord, len(body.Records))}
	seen := make(map[string]bool)
	for i, rec := range body.Records {
		req.Records[i] = core.NormalizeRecord(rec, opts.AcceptBibNum)
		for k := range req.Records[i] {
			if !seen[k] {
				seen[k] = true
				req.Headers = append(req.Headers, k)
			}
		}
	}
	if len(body.Headers) > 0 {
		req.Headers = core.NormalizeHeaders(body.Headers)
	} else {
		slices.Sort(req.Headers)
	}
	return req, nil
}

func (s *Server) handleListDivisions(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	divisions, err := s.service.EventDivisions(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if divisions == nil {
		divisions = []core.Division{}
	}
	writeJSON(w, http.StatusOK, divisionsResponse{Divisions: divisions})
}

// handleEnsureDivisions links the standard divisions for the given genders
// to an event that has none.
func (s *Server) handleEnsureDivisions(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var body ensureDivisionsBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	divisions, err := s.service.EnsureDivisions(r.Context(), id, body.Genders)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if divisions == nil {
		divisions = []core.Division{}
	}
	writeJSON(w, http.StatusOK, divisionsResponse{Divisions: divisions})
}

// handleCommit writes an operator-approved batch. An aborted batch still
// returns the per-row report, with every row failed.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var body commitBody
	if err := s.decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	acceptBib := s.service.ParseOptions().AcceptBibNum
	for i := range body.Rows {
		body.Rows[i].Fields = core.NormalizeRecord(body.Rows[i].Fields, acceptBib)
	}

	report, err := s.service.Commit(r.Context(), core.CommitRequest{EventID: id, Rows: body.Rows})
	if err != nil {
		if report == nil {
			s.respondError(w, r, err)
			return
		}
		status := statusFor(err)
		errBody := errorBody(err)
		errBody.Error = err.Error()
		logError(r, err, status, errBody.Code)
		writeJSON(w, status, commitResponse{CommitReport: report, Error: &errBody})
		return
	}

	writeJSON(w, http.StatusOK, commitResponse{CommitReport: report})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}
