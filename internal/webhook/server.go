package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/recap-reports/recap/internal/notify"
	"github.com/recap-reports/recap/internal/store"
)

// Server receives scraped report rows from the browser-side agent and
// appends them to the processed table.
type Server struct {
	store      *store.Store
	key        string
	port       int
	notifier   notify.Notifier
	httpServer *http.Server
}

func NewServer(st *store.Store, key string, port int, notifier notify.Notifier) *Server {
	return &Server{
		store:    st,
		key:      key,
		port:     port,
		notifier: notifier,
	}
}

// Routes builds the router. Exposed separately so tests can drive the
// handler without a listening socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/", s.handleIngest)
	r.Post("/hook", s.handleIngest)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	return r
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Error: malformed JSON payload", http.StatusBadRequest)
		return
	}

	// Bare equality on the shared key is the only authentication. No
	// detail beyond the marker leaks to the caller.
	if payload.Key != s.key {
		http.Error(w, MarkerUnauthorized, http.StatusUnauthorized)
		return
	}

	// Validate the whole batch before touching the store, so a malformed
	// row can never leave a partial batch behind.
	for i, row := range payload.TableData {
		if len(row) > store.MeetingFields {
			http.Error(w, fmt.Sprintf("Error: row %d has %d fields, at most %d allowed", i, len(row), store.MeetingFields), http.StatusBadRequest)
			return
		}
	}

	meetings := make([]store.Meeting, 0, len(payload.TableData))
	for _, row := range payload.TableData {
		meetings = append(meetings, store.MeetingFromRow(row))
	}

	if err := s.store.AppendMeetings(meetings); err != nil {
		log.Printf("Webhook: failed to store batch: %v", err)
		http.Error(w, "Error: failed to store rows", http.StatusInternalServerError)
		return
	}

	log.Printf("Webhook: stored %d meeting rows", len(meetings))
	fmt.Fprintf(w, "%s: stored %d rows\n", MarkerSuccess, len(meetings))

	if s.notifier != nil {
		msg := notify.Message{
			Subject: fmt.Sprintf("recap: %d meeting rows received", len(meetings)),
			Body:    fmt.Sprintf("The webhook receiver stored %d rows in the processed table at %s.", len(meetings), time.Now().Format(time.RFC1123)),
		}
		if err := s.notifier.Notify(r.Context(), msg); err != nil {
			log.Printf("Warning: failed to notify operator: %v", err)
		}
	}
}

// Start runs the receiver until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server failed: %w", err)
	}
}
