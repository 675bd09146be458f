package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dom/wartracker/internal/domain"
	"github.com/dom/wartracker/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RecordHandler struct {
	recordService *service.RecordService
	logger        *zap.Logger
}

func NewRecordHandler(recordService *service.RecordService, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{recordService: recordService, logger: logger}
}

// RecordResponse is returned by create and update
type RecordResponse struct {
	Record  *domain.MatchRecord `json:"record"`
	Warning string              `json:"warning,omitempty"`
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r)
	if err != nil {
		h.logger.Warn("invalid request body", zap.String("handler", "record.Create"), zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.recordService.Create(r.Context(), body)
	if err != nil {
		h.fail(w, "record.Create", "Failed to create record", uuid.Nil, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordResponse{Record: result.Record, Warning: result.Warning})
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter, bad := parseFilter(q)
	if bad != "" {
		http.Error(w, "Invalid "+bad, http.StatusBadRequest)
		return
	}
	decode, err := boolParam(q.Get("decode"))
	if err != nil {
		http.Error(w, "Invalid decode flag", http.StatusBadRequest)
		return
	}

	records, err := h.recordService.List(r.Context(), filter, decode)
	if err != nil {
		h.fail(w, "record.List", "Failed to list records", uuid.Nil, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// Stats reports win/loss counts and the win rate for the same filters as
// List. Paging parameters are accepted and ignored.
func (h *RecordHandler) Stats(w http.ResponseWriter, r *http.Request) {
	filter, bad := parseFilter(r.URL.Query())
	if bad != "" {
		http.Error(w, "Invalid "+bad, http.StatusBadRequest)
		return
	}

	stats, err := h.recordService.Stats(r.Context(), filter)
	if err != nil {
		h.fail(w, "record.Stats", "Failed to compute stats", uuid.Nil, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	decode, err := boolParam(r.URL.Query().Get("decode"))
	if err != nil {
		http.Error(w, "Invalid decode flag", http.StatusBadRequest)
		return
	}

	record, err := h.recordService.Get(r.Context(), id, decode)
	if err != nil {
		h.fail(w, "record.Get", "Failed to get record", id, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	body, err := decodeBody(r)
	if err != nil {
		h.logger.Warn("invalid request body", zap.String("handler", "record.Update"), zap.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.recordService.Update(r.Context(), id, body)
	if err != nil {
		h.fail(w, "record.Update", "Failed to update record", id, err)
		return
	}

	writeJSON(w, http.StatusOK, RecordResponse{Record: result.Record, Warning: result.Warning})
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRecordID(w, r)
	if !ok {
		return
	}

	if err := h.recordService.Delete(r.Context(), id); err != nil {
		h.fail(w, "record.Delete", "Failed to delete record", id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// fail maps service errors onto status codes. Unexpected errors keep their
// detail in the response body.
func (h *RecordHandler) fail(w http.ResponseWriter, op, message string, id uuid.UUID, err error) {
	fields := []zap.Field{zap.String("handler", op), zap.Error(err)}
	if id != uuid.Nil {
		fields = append(fields, zap.String("recordID", id.String()))
	}

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.logger.Info("rejected record", fields...)
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrRecordNotFound):
		h.logger.Info("record not found", fields...)
		http.Error(w, "Record not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrSchemaMismatch):
		h.logger.Error("schema is missing required columns", fields...)
		http.Error(w, message+": the database schema is missing required columns, run migrations", http.StatusInternalServerError)
	default:
		h.logger.Error(message, fields...)
		http.Error(w, message+": "+err.Error(), http.StatusInternalServerError)
	}
}

func parseRecordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid record ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody reads a JSON object. Numbers stay json.Number so large integers
// survive until normalization.
func decodeBody(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// parseFilter reads gameKind, q, limit and offset. On failure it names the
// offending parameter.
func parseFilter(q url.Values) (domain.RecordFilter, string) {
	filter := domain.RecordFilter{
		GameKind: q.Get("gameKind"),
		Query:    q.Get("q"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return filter, "limit"
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return filter, "offset"
	}
	return filter, ""
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer parameter")
	}
	return n, nil
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
