package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"lexiflow/internal/blobstore"
	"lexiflow/internal/cache"
	"lexiflow/internal/config"
	"lexiflow/internal/extraction"
	"lexiflow/internal/models"
	"lexiflow/internal/pipeline"
	"lexiflow/internal/queue"
	"lexiflow/internal/util"
	"lexiflow/internal/workflows"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type DocumentCreator interface {
	Create(ctx context.Context, d models.Document) error
	MarkProcessed(ctx context.Context, documentID string) error
}

type JobQueue interface {
	Enqueue(ctx context.Context, job workflows.DocumentJob) (queue.JobRef, error)
	Status(ctx context.Context, documentID string) (workflows.DocumentStatus, error)
}

type StatusReader interface {
	Status(ctx context.Context, documentID string) (pipeline.StatusReport, error)
	Finalize(ctx context.Context, documentID string) (pipeline.StatusReport, error)
}

type Deps struct {
	Documents DocumentCreator
	Blobs     blobstore.Store
	Jobs      JobQueue
	Status    StatusReader
	Cache     cache.Client
}

type Server struct {
	cfg   config.Config
	deps  Deps
	log   zerolog.Logger
	newID func() string
}

func NewServer(cfg config.Config, deps Deps, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, deps: deps, log: log, newID: uuid.NewString}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleUpload)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleUpload validates the file, stores it, records the document and
// enqueues processing. Input errors are rejected before anything is queued.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	maxBytes := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, util.ErrFileTooLarge)
			return
		}
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}
	if userID == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}
	categoryID := strings.TrimSpace(r.FormValue("category_id"))
	if categoryID != "" {
		if _, ok := models.LookupCategory(categoryID); !ok {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("unknown category_id %q", categoryID))
			return
		}
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	mime, err := extraction.ValidateUpload(data, fh.Header.Get("Content-Type"), maxBytes)
	if err != nil {
		writeErr(w, inputStatus(err), err)
		return
	}

	documentID := s.newID()
	key := blobstore.Key(userID, documentID, extensionFor(mime))
	if err := s.deps.Blobs.Put(r.Context(), key, data, mime); err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	doc := models.Document{
		DocumentID: documentID,
		UserID:     userID,
		Filename:   filepath.Base(fh.Filename),
		StorageKey: key,
		MimeType:   mime,
		SizeBytes:  int64(len(data)),
	}
	if categoryID != "" {
		doc.CategoryID = &categoryID
	}
	if err := s.deps.Documents.Create(r.Context(), doc); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	ref, err := s.deps.Jobs.Enqueue(r.Context(), workflows.DocumentJob{
		DocumentID: documentID,
		UserID:     userID,
		FileKey:    key,
		Filename:   doc.Filename,
		CategoryID: categoryID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("document_id", documentID).Msg("enqueue failed")
		// no job will ever finish this document, so stop pollers waiting on it
		if merr := s.deps.Documents.MarkProcessed(context.WithoutCancel(r.Context()), documentID); merr != nil {
			s.log.Error().Err(merr).Str("document_id", documentID).Msg("mark processed after enqueue failure")
		}
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	s.log.Info().Str("document_id", documentID).Str("user_id", userID).Str("mime", mime).Int("bytes", len(data)).Msg("document enqueued")
	writeJSON(w, http.StatusAccepted, map[string]any{"document_id": documentID, "job": ref})
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]
	if _, err := uuid.Parse(documentID); err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	switch parts[1] {
	case "status":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		st, err := s.deps.Status.Status(r.Context(), documentID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case "finalize":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		st, err := s.deps.Status.Finalize(r.Context(), documentID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case "quick":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		p, ok := cache.GetJSON[pipeline.QuickPayload](r.Context(), s.deps.Cache, cache.QuickFlashcardsKey(documentID))
		if !ok {
			writeErr(w, http.StatusNotFound, fmt.Errorf("no quick preview"))
			return
		}
		out := map[string]any{"language": p.Language, "items": p.Items}
		if qt, ok := cache.GetJSON[pipeline.QuickTranslation](r.Context(), s.deps.Cache, cache.QuickTranslationKey(documentID)); ok {
			out["translation"] = qt.Text
		}
		writeJSON(w, http.StatusOK, out)
	case "job":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st, err := s.deps.Jobs.Status(ctx, documentID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func extensionFor(mime string) string {
	switch mime {
	case extraction.MimePDF:
		return "pdf"
	case extraction.MimePNG:
		return "png"
	case extraction.MimeJPEG:
		return "jpg"
	case extraction.MimeWebP:
		return "webp"
	}
	return "bin"
}

func inputStatus(err error) int {
	switch {
	case errors.Is(err, util.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, util.ErrUnsupportedMime):
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

func statusFor(err error) int {
	if errors.Is(err, util.ErrDocumentNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "LX-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "LX-DB-5001",
				Message: "Database schema is not initialized. Restart the worker and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "LX-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "LX-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "LX-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "LX-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "LX-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusRequestEntityTooLarge:
		code = "LX-API-4013"
		msg = "File exceeds the upload limit."
	case status == http.StatusUnsupportedMediaType:
		code = "LX-API-4015"
		msg = "Unsupported file type. Upload a PDF, PNG, JPEG or WebP file."
	case status == http.StatusBadGateway:
		code = "LX-API-5020"
		msg = "Upstream service unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "user_id is required"):
			msg = "A user id is required."
		case strings.Contains(raw, "no file provided"):
			msg = "No file was provided."
		case errors.Is(err, util.ErrEmptyFile):
			msg = "The uploaded file is empty."
		case strings.Contains(raw, "unknown category_id"):
			msg = "Unknown category."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
