package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
	"github.com/eugenenazirov/box-simulator/internal/simulation"
	"github.com/eugenenazirov/box-simulator/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxUploadBytes = 32 << 20
	uploadField           = "file"
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handler wires the simulation service into HTTP handlers.
type Handler struct {
	service *simulation.Service

	clock          func() time.Time
	maxUploadBytes int64
	readOptions    sheet.ReadOptions
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxUploadBytes bounds request bodies.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithReadOptions sets the default sheet name and CSV encoding for uploads.
func WithReadOptions(opts sheet.ReadOptions) HandlerOption {
	return func(h *Handler) {
		h.readOptions = opts
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(service *simulation.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:        service,
		maxUploadBytes: defaultMaxUploadBytes,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	_ = r
	limits, err := h.service.Limits()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, limitsResponse{StoredLimits: limits})
}

func (h *Handler) handlePutLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if req.VolumeMax == nil || req.WeightMax == nil {
		writeError(w, http.StatusBadRequest, "Invalid limits", "volumeMax and weightMax are required")
		return
	}

	stored, err := h.service.SetLimits(packer.Limits{VolumeMax: *req.VolumeMax, WeightMax: *req.WeightMax})
	if err != nil {
		if errors.Is(err, simulation.ErrInvalidLimits) {
			writeError(w, http.StatusBadRequest, "Invalid limits", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, limitsResponse{
		StoredLimits: stored,
		Message:      "Box limits updated successfully",
	})
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}
	h.runSimulation(r.Context(), w, simulation.Request{
		Lines:                req.Lines,
		HasHistory:           simulation.HasHistory(req.Lines),
		VolumeMax:            req.VolumeMax,
		WeightMax:            req.WeightMax,
		IgnoreArm:            req.IgnoreArm,
		ConvertPackageToUnit: req.ConvertPackageToUnit,
		Source:               source,
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large",
				fmt.Sprintf("files are limited to %d bytes", h.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "expected a multipart form with a file field")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "missing file field")
		return
	}
	defer func() {
		_ = file.Close()
	}()

	req := simulation.Request{Source: header.Filename}
	var ok bool
	if req.VolumeMax, ok = formFloat(w, r, "volumeMax"); !ok {
		return
	}
	if req.WeightMax, ok = formFloat(w, r, "weightMax"); !ok {
		return
	}
	if req.IgnoreArm, ok = formBool(w, r, "ignoreArm"); !ok {
		return
	}
	if req.ConvertPackageToUnit, ok = formBool(w, r, "convertPackageToUnit"); !ok {
		return
	}

	readOpts := h.readOptions
	if v := strings.TrimSpace(r.FormValue("sheet")); v != "" {
		readOpts.Sheet = v
	}
	if v := strings.TrimSpace(r.FormValue("encoding")); v != "" {
		readOpts.Encoding = v
	}

	table, err := sheet.Read(file, header.Filename, readOpts)
	if err != nil {
		writeSheetError(w, err)
		return
	}
	fromTable := simulation.FromTable(table, header.Filename)
	req.Lines, req.HasHistory = fromTable.Lines, fromTable.HasHistory

	h.runSimulation(r.Context(), w, req)
}

func (h *Handler) runSimulation(ctx context.Context, w http.ResponseWriter, req simulation.Request) {
	run, err := h.service.Run(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, simulation.ErrNoLines):
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		case errors.Is(err, simulation.ErrInvalidLimits):
			writeError(w, http.StatusBadRequest, "Invalid limits", err.Error(),
				"Provide positive volumeMax and weightMax or update the defaults via PUT /api/limits")
		case errors.Is(err, simulation.ErrInvalidLines):
			writeError(w, http.StatusUnprocessableEntity, "Invalid order lines", err.Error())
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *Handler) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			writeError(w, http.StatusBadRequest, "Invalid request", "limit must be a non-negative integer")
			return
		}
		limit = value
	}

	runs, err := h.service.List(limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Simulations: runs})
}

func (h *Handler) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Get(r.PathValue("id"))
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var buf bytes.Buffer
	if err := h.service.WriteReport(&buf, id); err != nil {
		writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="simulation-%s.xlsx"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("request bodies are limited to %d bytes", h.maxUploadBytes))
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	return true
}

func formFloat(w http.ResponseWriter, r *http.Request, key string) (*float64, bool) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("%s must be a number", key))
		return nil, false
	}
	return &value, true
}

func formBool(w http.ResponseWriter, r *http.Request, key string) (*bool, bool) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return nil, true
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("%s must be true or false", key))
		return nil, false
	}
	return &value, true
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func writeSheetError(w http.ResponseWriter, err error) {
	var missing *sheet.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		writeError(w, http.StatusUnprocessableEntity, "Missing columns", err.Error(),
			"The header row must name store, product, description, quantity, weight and volume columns")
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		writeError(w, http.StatusUnprocessableEntity, "Unsupported file", err.Error(), "Upload an .xlsx or .csv file")
	case errors.Is(err, sheet.ErrSheetNotFound):
		writeError(w, http.StatusUnprocessableEntity, "Sheet not found", err.Error(),
			fmt.Sprintf("Name the worksheet %q or pass the sheet field", sheet.DefaultSheet))
	default:
		writeError(w, http.StatusUnprocessableEntity, "Unreadable file", err.Error())
	}
}

func writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Not found", err.Error())
		return
	}
	writeInternalError(w, err)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type limitsRequest struct {
	VolumeMax *float64 `json:"volumeMax"`
	WeightMax *float64 `json:"weightMax"`
}

type simulateRequest struct {
	Lines                []packer.OrderLine `json:"lines"`
	VolumeMax            *float64           `json:"volumeMax"`
	WeightMax            *float64           `json:"weightMax"`
	IgnoreArm            *bool              `json:"ignoreArm"`
	ConvertPackageToUnit *bool              `json:"convertPackageToUnit"`
	Source               string             `json:"source"`
}

type limitsResponse struct {
	storage.StoredLimits
	Message string `json:"message,omitempty"`
}

type listResponse struct {
	Simulations []storage.RunSummary `json:"simulations"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
