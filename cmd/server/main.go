package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"docqa/internal/answer"
	"docqa/internal/app"
	"docqa/internal/cache"
	"docqa/internal/corpus"
	"docqa/internal/events"
	"docqa/internal/extract"
	"docqa/internal/httputil"
	"docqa/internal/store"
)

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	r := newRouter(deps)

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("server listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

func newRouter(deps app.Deps) *chi.Mux {
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/documents/upload", uploadHandler(deps))
	r.Get("/api/documents", listHandler(deps))
	r.Get("/api/documents/{filename}/status", statusHandler(deps))
	r.Delete("/api/documents/{filename}", deleteHandler(deps))
	r.Post("/api/documents/clear", clearHandler(deps))
	r.Post("/api/chat", chatHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	return r
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}
		if !extract.Supported(header.Filename) {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}
		if int64(len(content)) > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		summary, err := deps.Corpus.Ingest(ctx, content, header.Filename)
		if err != nil {
			failIngest(deps, w, header.Filename, err)
			return
		}

		afterCorpusWrite(ctx, deps, events.Event{
			Type:       events.EventDocumentIndexed,
			Filename:   summary.Filename,
			ChunkCount: summary.Chunks,
		})

		httputil.WriteJSON(w, http.StatusCreated, map[string]any{
			"filename": summary.Filename,
			"pages":    summary.Pages,
			"chunks":   summary.Chunks,
			"status":   summary.Status,
		})
	}
}

// failIngest maps pipeline stages to HTTP statuses: extraction problems are
// the client's document, embedding and commit problems are our backends.
func failIngest(deps app.Deps, w http.ResponseWriter, filename string, err error) {
	log := deps.Log.With("filename", filename)

	var ingErr *corpus.IngestError
	if !errors.As(err, &ingErr) {
		httputil.Fail(log, w, "ingestion failed", err, http.StatusInternalServerError)
		return
	}

	switch ingErr.Stage {
	case corpus.StageExtract:
		msg := "document could not be processed"
		switch {
		case errors.Is(err, extract.ErrNoText):
			msg = "document contains no extractable text"
		case errors.Is(err, extract.ErrUnreadable):
			msg = "document is corrupt or not a valid file of its type"
		}
		httputil.Fail(log, w, msg, err, http.StatusUnprocessableEntity)
	case corpus.StageEmbed:
		httputil.Fail(log, w, "embedding service unavailable; please retry", err, http.StatusBadGateway)
	default:
		httputil.Fail(log, w, "ingestion failed", err, http.StatusInternalServerError)
	}
}

func listHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := deps.Corpus.List(r.Context())
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list documents", err, http.StatusInternalServerError)
			return
		}

		out := make([]map[string]any, 0, len(docs))
		for _, d := range docs {
			out = append(out, map[string]any{
				"filename":    d.Filename,
				"chunk_count": d.ChunkCount,
				"page_count":  d.PageCount,
				"indexed_at":  d.IndexedAt,
			})
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": out})
	}
}

// statusHandler reports the last observed ingestion state for a filename,
// including in-flight and failed ingestions that never reached the store.
func statusHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		status, ok := deps.Corpus.Status(filename)
		if !ok {
			httputil.Fail(deps.Log, w, "document not found", nil, http.StatusNotFound)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"filename": filename,
			"status":   status,
		})
	}
}

func deleteHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if err := deps.Corpus.Delete(r.Context(), filename); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				httputil.Fail(deps.Log, w, "document not found", err, http.StatusNotFound)
				return
			}
			httputil.Fail(deps.Log, w, "failed to delete document", err, http.StatusInternalServerError)
			return
		}

		afterCorpusWrite(r.Context(), deps, events.Event{
			Type:     events.EventDocumentDeleted,
			Filename: filename,
		})

		httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": filename})
	}
}

func clearHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Corpus.Clear(r.Context()); err != nil {
			httputil.Fail(deps.Log, w, "failed to clear corpus", err, http.StatusInternalServerError)
			return
		}

		afterCorpusWrite(r.Context(), deps, events.Event{Type: events.EventCorpusCleared})

		httputil.WriteJSON(w, http.StatusOK, map[string]any{"cleared": true})
	}
}

// afterCorpusWrite invalidates cached answers and notifies subscribers.
// Both are best effort; the corpus change itself has already committed.
func afterCorpusWrite(ctx context.Context, deps app.Deps, ev events.Event) {
	if err := deps.Cache.InvalidateAll(ctx); err != nil {
		deps.Log.Warn("cache invalidation failed", "err", err)
	}
	if err := events.PublishWithRetry(ctx, deps.Events, ev, 3, 200*time.Millisecond); err != nil {
		deps.Log.Warn("event publish failed", "type", ev.Type, "err", err)
	}
}

type chatRequest struct {
	Message        string `json:"message" validate:"required,min=1,max=4000"`
	DocumentFilter string `json:"document_filter" validate:"omitempty,max=512"`
	SessionID      string `json:"session_id" validate:"omitempty,max=128"`
}

func chatHandler(deps app.Deps) http.HandlerFunc {
	cacheTTL := time.Duration(deps.Config.CacheTTL) * time.Second

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req chatRequest
		if err := httputil.DecodeAndValidate(r, &req); err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}

		key := cache.Key(req.Message, req.DocumentFilter)
		if cached, err := deps.Cache.GetAnswer(ctx, key); err != nil {
			deps.Log.Warn("cache lookup failed", "err", err)
		} else if cached != nil {
			writeChat(w, *cached, true)
			return
		}

		ans, err := deps.Orchestrator.Answer(ctx, answer.Request{
			Query:          req.Message,
			DocumentFilter: req.DocumentFilter,
			SessionID:      req.SessionID,
		})
		if err != nil {
			if errors.Is(err, answer.ErrGeneration) {
				httputil.Fail(deps.Log, w, "generation service unavailable; please retry", err, http.StatusBadGateway)
				return
			}
			httputil.Fail(deps.Log, w, "failed to answer question", err, http.StatusInternalServerError)
			return
		}

		if err := deps.Cache.SetAnswer(ctx, key, &ans, cacheTTL); err != nil {
			deps.Log.Warn("cache store failed", "err", err)
		}

		writeChat(w, ans, false)
	}
}

func writeChat(w http.ResponseWriter, ans answer.Answer, cached bool) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"answer":       ans.Text,
		"grounded":     ans.Grounded,
		"attributions": ans.Attributions,
		"cached":       cached,
	})
}
