package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"docwatch/internal/app"
	"docwatch/internal/models"
	"docwatch/internal/service"
	"docwatch/internal/snapshot"
	"docwatch/internal/state"
	"docwatch/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	App    *app.App
	Logger *slog.Logger
	// MaxBodyBytes caps every request body.
	MaxBodyBytes int64
}

func NewHandler(a *app.App) *Handler {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{App: a, Logger: logger.With("component", "api"), MaxBodyBytes: snapshot.MaxFileSize}
}

// NewRouter builds the HTTP router with middleware, CORS and all routes.
func NewRouter(h *Handler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("docwatch is running"))
	})

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/api/policy", h.GetPolicy)
	r.Post("/api/compare", h.Compare)

	// Staged uploads
	r.Get("/api/tables", h.ListTables)
	r.Put("/api/tables/{name}/{side}", h.UploadTable)
	r.Delete("/api/tables", h.ClearTables)
	r.Delete("/api/tables/{name}", h.ClearTables)

	// Runs
	r.Post("/api/runs", h.CreateRun)
	r.Get("/api/runs", h.ListRuns)
	r.Get("/api/runs/latest", h.GetLatestRun)
	r.Get("/api/runs/{id}", h.GetRun)
	r.Get("/api/runs/{id}/heatmap", h.GetHeatmap)
}

// ============================================================================
// Health & Policy
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// GetPolicy returns the column risk policy in use.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Policy.Document())
}

// ============================================================================
// Compare
// ============================================================================

type snapshotPayload struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Grid    [][]string `json:"grid,omitempty"` // header row followed by data rows
}

func (p snapshotPayload) toSnapshot(name string) (models.TableSnapshot, error) {
	if len(p.Grid) > 0 {
		return snapshot.FromGrid(name, p.Grid)
	}
	if len(p.Columns) == 0 {
		return models.TableSnapshot{}, snapshot.ErrEmptySnapshot
	}
	return models.TableSnapshot{Name: name, Columns: p.Columns, Rows: p.Rows}, nil
}

type pairPayload struct {
	Name     string          `json:"name"`
	Baseline snapshotPayload `json:"baseline"`
	Current  snapshotPayload `json:"current"`
}

func (p pairPayload) toPair() (models.TablePair, error) {
	if p.Name == "" {
		return models.TablePair{}, errors.New("name is required")
	}
	baseline, err := p.Baseline.toSnapshot(p.Name)
	if err != nil {
		return models.TablePair{}, fmt.Errorf("baseline: %w", err)
	}
	current, err := p.Current.toSnapshot(p.Name)
	if err != nil {
		return models.TablePair{}, fmt.Errorf("current: %w", err)
	}
	return models.TablePair{Name: p.Name, Baseline: baseline, Current: current}, nil
}

// Compare scores a single table pair without persisting it.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	var req pairPayload
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		decodeError(w, err)
		return
	}
	pair, err := req.toPair()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.App.Pipeline.Compare(r.Context(), pair)
	if errors.Is(err, service.ErrStructuralMismatch) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     err.Error(),
			"alignment": result.Alignment,
		})
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Compare failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ============================================================================
// Staged uploads
// ============================================================================

// UploadTable stages one side of a table. The CSV arrives either as a
// multipart "file" field or as the raw request body.
func (h *Handler) UploadTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	side, err := state.ParseSide(chi.URLParam(r, "side"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	var body io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.HasPrefix(mediaType, "multipart/") {
		if err := r.ParseMultipartForm(h.MaxBodyBytes); err != nil {
			decodeError(w, err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			http.Error(w, "Only CSV files are allowed", http.StatusBadRequest)
			return
		}
		body = file
	}

	snap, err := snapshot.ParseCSV(body, name)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse CSV: %v", err), http.StatusBadRequest)
		return
	}
	h.App.Workspace.Stage(name, side, snap)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s snapshot of '%s' staged", side, name),
		"rows":    snap.NumRows(),
		"columns": snap.Columns,
	})
}

// ListTables reports which tables are staged and ready to run.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.App.Workspace.Status())
}

// ClearTables drops one staged table, or all of them.
func (h *Handler) ClearTables(w http.ResponseWriter, r *http.Request) {
	h.App.Workspace.Clear(chi.URLParam(r, "name"))
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Runs
// ============================================================================

type runRequest struct {
	Tables []pairPayload `json:"tables"`
}

// CreateRun scores a batch. With no tables in the body the staged tables
// are used.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		decodeError(w, err)
		return
	}

	var pairs []models.TablePair
	for _, t := range req.Tables {
		pair, err := t.toPair()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		pairs = h.App.Workspace.Pairs()
	}

	result, err := h.App.Run(r.Context(), pairs)
	if errors.Is(err, service.ErrNoTables) {
		http.Error(w, "No tables to score", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Logger.Error("run failed", "error", err)
		http.Error(w, fmt.Sprintf("Run failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListRuns returns persisted runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	runs, err := h.App.Store.List(r.Context(), getIntParam(r, "limit", 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetLatestRun returns the newest persisted score set.
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	latest, err := h.App.Store.Latest(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	set, err := h.App.Store.LoadScoreSet(r.Context(), latest.ID)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// GetRun returns the score set of one run.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	set, err := h.App.Store.LoadScoreSet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// GetHeatmap returns the clustered heatmap of one run.
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	heatmap, err := h.App.Store.LoadHeatmap(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, heatmap)
}

// ============================================================================
// Helpers
// ============================================================================

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.App.Store == nil {
		http.Error(w, "Run persistence is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	h.Logger.Error("store query failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// decodeError answers 413 when the body hit MaxBodyBytes and 400 otherwise.
func decodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "Invalid JSON", http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getIntParam(r *http.Request, name string, defaultVal int) int {
	valStr := r.URL.Query().Get(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
