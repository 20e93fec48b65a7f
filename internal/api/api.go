// Package api provides HTTP handlers and the main API server logic for
// Wellspring.
//
// It exposes endpoints for conversation turns, knowledge ingestion and
// search, and the Twilio WhatsApp webhook.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/canokcuer/wellspring/internal/flow"
	"github.com/canokcuer/wellspring/internal/messaging"
	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/retrieval"
)

// Server timeouts.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 120 * time.Second
	DefaultAddr         = ":8080"
)

// ConversationHandler processes user turns and reports conversation
// progress. Satisfied by *flow.Orchestrator.
type ConversationHandler interface {
	HandleTurn(ctx context.Context, conversationID, userMessage string) (string, models.StateType, error)
	Snapshot(ctx context.Context, conversationID string) (*flow.Snapshot, error)
}

// Ingestor appends documents to the knowledge corpus. Satisfied by
// *knowledge.Ingestor.
type Ingestor interface {
	Ingest(ctx context.Context, document, source string) ([]string, error)
}

// Searcher queries the knowledge corpus. Satisfied by *retrieval.Engine.
type Searcher interface {
	Search(ctx context.Context, query string, threshold float64, topK int, sourceFilter string) ([]retrieval.Result, error)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP surface to the conversation flow and the knowledge
// corpus.
type Server struct {
	addr          string
	conversations ConversationHandler
	ingestor      Ingestor
	searcher      Searcher
	twilio        *messaging.TwilioService
}

// NewServer creates an API server. The Twilio service is optional; when nil,
// the webhook route is not mounted.
func NewServer(conversations ConversationHandler, ingestor Ingestor, searcher Searcher, twilio *messaging.TwilioService, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	s := &Server{
		addr:          cfg.Addr,
		conversations: conversations,
		ingestor:      ingestor,
		searcher:      searcher,
		twilio:        twilio,
	}
	if twilio != nil {
		twilio.SetTurnHandler(func(ctx context.Context, conversationID, message string) (string, error) {
			reply, _, err := conversations.HandleTurn(ctx, conversationID, message)
			return reply, err
		})
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations", s.conversationCreateHandler)
	mux.HandleFunc("POST /conversations/{id}/messages", s.conversationMessageHandler)
	mux.HandleFunc("GET /conversations/{id}", s.conversationSnapshotHandler)
	mux.HandleFunc("POST /knowledge/ingest", s.knowledgeIngestHandler)
	mux.HandleFunc("POST /knowledge/search", s.knowledgeSearchHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	if s.twilio != nil {
		mux.HandleFunc("POST /webhook/twilio", s.twilio.WebhookHandler)
	}
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Wellspring API running", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
