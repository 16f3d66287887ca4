package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/pipeline"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type ingestPayload struct {
	SourceURL   string `json:"source_url"`
	MetadataURL string `json:"metadata_url,omitempty"`
	ShortName   string `json:"short_name,omitempty"`
	StartURL    string `json:"start_url,omitempty"`
	EndURL      string `json:"end_url,omitempty"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.WithComponent(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/books", srv.handleListBooks)
	mux.HandleFunc("POST /api/books", srv.handleIngest)
	mux.HandleFunc("GET /api/books/{id}", srv.handleGetBook)
	mux.HandleFunc("GET /api/books/{id}/chapters", srv.handleBookChapters)
	mux.HandleFunc("GET /api/chapters", srv.handleChaptersByStatus)
	mux.HandleFunc("GET /api/chapters/{id}", srv.handleGetChapter)

	srv.server = &http.Server{
		Handler:           authMiddleware(cfg.Paths.APIToken, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", slog.Any("error", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.daemon.store.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if books == nil {
		books = []*records.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func (s *apiServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.daemon.store.GetBook(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *apiServer) handleBookChapters(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("id")
	if _, err := s.daemon.store.GetBook(r.Context(), bookID); err != nil {
		writeLookupError(w, err)
		return
	}
	chapters, err := s.daemon.store.ListChaptersByBook(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if chapters == nil {
		chapters = []*records.Chapter{}
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (s *apiServer) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	chapter, err := s.daemon.store.GetChapter(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapter)
}

func (s *apiServer) handleChaptersByStatus(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	status, ok := stage.Parse(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", raw))
		return
	}
	chapters, err := s.daemon.store.ListChaptersByStatus(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if chapters == nil {
		chapters = []*records.Chapter{}
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	book, err := pipeline.Ingest(r.Context(), s.daemon.store, s.daemon.broker, pipeline.IngestRequest{
		SourceURL:   payload.SourceURL,
		MetadataURL: payload.MetadataURL,
		ShortName:   payload.ShortName,
		StartURL:    payload.StartURL,
		EndURL:      payload.EndURL,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Info("book submitted",
		slog.String("book_id", book.ID),
		slog.String("source_url", book.SourceURL))
	writeJSON(w, http.StatusAccepted, book)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, records.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
