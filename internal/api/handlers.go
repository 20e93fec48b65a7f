package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/canokcuer/wellspring/internal/models"
	"github.com/canokcuer/wellspring/internal/retrieval"
	"github.com/canokcuer/wellspring/internal/util"
)

// conversationCreateResult carries the ID for a freshly minted conversation.
type conversationCreateResult struct {
	ConversationID string `json:"conversation_id"`
}

func (s *Server) conversationCreateHandler(w http.ResponseWriter, r *http.Request) {
	id := util.GenerateConversationID()
	slog.Debug("conversationCreateHandler created conversation", "conversationID", id)
	writeJSONResponse(w, http.StatusCreated, models.Success(conversationCreateResult{ConversationID: id}))
}

// conversationMessageRequest is the body of POST /conversations/{id}/messages.
type conversationMessageRequest struct {
	Message string `json:"message"`
}

// conversationMessageResult is the result payload for a conversation turn.
type conversationMessageResult struct {
	Reply string `json:"reply"`
	Stage string `json:"stage"`
}

func (s *Server) conversationMessageHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation ID is required"))
		return
	}

	var req conversationMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	reply, stage, err := s.conversations.HandleTurn(r.Context(), conversationID, req.Message)
	if err != nil {
		slog.Error("Conversation turn failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process message"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(conversationMessageResult{
		Reply: reply,
		Stage: string(stage),
	}))
}

func (s *Server) conversationSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("conversation ID is required"))
		return
	}

	snapshot, err := s.conversations.Snapshot(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("conversation not found"))
			return
		}
		slog.Error("Conversation snapshot failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load conversation"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(snapshot))
}

// knowledgeIngestRequest is the body of POST /knowledge/ingest.
type knowledgeIngestRequest struct {
	Document string `json:"document"`
	Source   string `json:"source"`
}

// knowledgeIngestResult reports the chunks created by an ingestion.
type knowledgeIngestResult struct {
	ChunkIDs []string `json:"chunk_ids"`
	Count    int      `json:"count"`
}

func (s *Server) knowledgeIngestHandler(w http.ResponseWriter, r *http.Request) {
	var req knowledgeIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.Document == "" || req.Source == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("document and source are required"))
		return
	}

	ids, err := s.ingestor.Ingest(r.Context(), req.Document, req.Source)
	if err != nil {
		slog.Error("Knowledge ingestion failed", "error", err, "source", req.Source)
		writeJSONResponse(w, statusForError(err), models.Error("failed to ingest document"))
		return
	}

	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("document ingested", knowledgeIngestResult{
		ChunkIDs: ids,
		Count:    len(ids),
	}))
}

// knowledgeSearchRequest is the body of POST /knowledge/search.
type knowledgeSearchRequest struct {
	Query        string  `json:"query"`
	Threshold    float64 `json:"threshold"`
	TopK         int     `json:"top_k"`
	SourceFilter string  `json:"source_filter,omitempty"`
}

// knowledgeSearchHit is one search result without the raw embedding.
type knowledgeSearchHit struct {
	ChunkID     string  `json:"chunk_id"`
	Text        string  `json:"text"`
	Source      string  `json:"source"`
	Similarity  float64 `json:"similarity"`
	SignalScore float64 `json:"signal_score"`
	FinalScore  float64 `json:"final_score"`
}

func (s *Server) knowledgeSearchHandler(w http.ResponseWriter, r *http.Request) {
	var req knowledgeSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.TopK == 0 {
		req.TopK = retrieval.DefaultTopK
	}
	if req.Threshold == 0 {
		req.Threshold = retrieval.DefaultThreshold
	}

	results, err := s.searcher.Search(r.Context(), req.Query, req.Threshold, req.TopK, req.SourceFilter)
	if err != nil {
		slog.Error("Knowledge search failed", "error", err)
		writeJSONResponse(w, statusForError(err), models.Error(err.Error()))
		return
	}

	hits := make([]knowledgeSearchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, knowledgeSearchHit{
			ChunkID:     res.Chunk.ID,
			Text:        res.Chunk.Text,
			Source:      res.Chunk.Source,
			Similarity:  res.Similarity,
			SignalScore: res.Chunk.SignalScore,
			FinalScore:  res.FinalScore,
		})
	}
	writeJSONResponse(w, http.StatusOK, models.Success(hits))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// statusForError maps the error taxonomy onto HTTP status codes: contract
// violations are the caller's fault, backend unavailability is temporary.
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrChunkNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
