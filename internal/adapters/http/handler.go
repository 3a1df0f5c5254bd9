package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/edc-ingest/internal/core/domain"
	"github.com/kirillkom/edc-ingest/internal/core/ports"
	"github.com/kirillkom/edc-ingest/internal/infrastructure/resilience"
)

// Handler exposes the batch pipeline over HTTP. Content findings travel in
// response bodies; only infrastructure failures map to error status codes.
type Handler struct {
	validator ports.BatchValidator
	renamer   ports.BatchRenamer
	importer  ports.BatchImporter
	batches   ports.BatchReader
	queue     ports.MessageQueue
	log       *slog.Logger
}

func NewHandler(
	validator ports.BatchValidator,
	renamer ports.BatchRenamer,
	importer ports.BatchImporter,
	batches ports.BatchReader,
	queue ports.MessageQueue,
	log *slog.Logger,
) *Handler {
	return &Handler{
		validator: validator,
		renamer:   renamer,
		importer:  importer,
		batches:   batches,
		queue:     queue,
		log:       log,
	}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/batches/validate", h.validate)
	mux.HandleFunc("POST /v1/batches/rename", h.rename)
	mux.HandleFunc("POST /v1/batches/import", h.importBatch)
	mux.HandleFunc("GET /v1/batches/{id}", h.getBatch)
	mux.HandleFunc("GET /healthz", h.healthz)
	return mux
}

type validateRequest struct {
	FolderPath string `json:"folder_path"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !h.decode(w, r, &req) {
		return
	}
	report, err := h.validator.Validate(r.Context(), req.FolderPath)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type renameRequest struct {
	FolderPath    string   `json:"folder_path"`
	ApprovedFiles []string `json:"approved_files,omitempty"`
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.renamer.Rename(r.Context(), req.FolderPath, req.ApprovedFiles)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

type importRequest struct {
	FolderPath string `json:"folder_path"`
	Study      string `json:"study,omitempty"`
	Async      bool   `json:"async,omitempty"`
}

type importAccepted struct {
	BatchID string `json:"batch_id,omitempty"`
	Folder  string `json:"folder"`
	Study   string `json:"study,omitempty"`
	Status  string `json:"status"`
}

func (h *Handler) importBatch(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Async {
		if h.queue == nil {
			h.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "import batch",
				errors.New("async imports are not configured")))
			return
		}
		job := domain.ImportJob{Folder: req.FolderPath, Study: req.Study}
		if err := h.queue.PublishImportJob(r.Context(), job); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusAccepted, importAccepted{
			Folder: req.FolderPath,
			Study:  req.Study,
			Status: "queued",
		})
		return
	}

	results, err := h.importer.Import(r.Context(), req.FolderPath, req.Study)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batches.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, batch)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode request", err))
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}
	h.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrFolderNotFound), domain.IsKind(err, domain.ErrBatchNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrNoFilesFound):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary), resilience.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("encode response", slog.Any("error", err))
	}
}
