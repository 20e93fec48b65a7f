package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/canokcuer/wellspring/internal/models"
)

// mockEmbeddingService records inputs and fails a configurable number of
// times before succeeding.
type mockEmbeddingService struct {
	failures int
	calls    int
	inputs   []string
}

func (m *mockEmbeddingService) New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	m.calls++
	if len(params.Input.OfArrayOfStrings) > 0 {
		m.inputs = append(m.inputs, params.Input.OfArrayOfStrings[0])
	}
	if m.calls <= m.failures {
		return nil, fmt.Errorf("simulated API failure %d", m.calls)
	}
	return &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: []float64{0.5, -0.25, 0.125}}},
	}, nil
}

func newTestEmbedder(svc embeddingService) *OpenAIEmbedder {
	return &OpenAIEmbedder{svc: svc, model: DefaultEmbeddingModel, dim: 3, timeout: DefaultEmbeddingTimeout}
}

func TestEncodeDocument(t *testing.T) {
	mock := &mockEmbeddingService{}
	e := newTestEmbedder(mock)

	vec, err := e.EncodeDocument(context.Background(), "sauna protocols")
	if err != nil {
		t.Fatalf("EncodeDocument failed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if mock.inputs[0] != "sauna protocols" {
		t.Errorf("document text must be sent verbatim, got %q", mock.inputs[0])
	}
}

func TestEncodeQueryAddsInstruction(t *testing.T) {
	mock := &mockEmbeddingService{}
	e := newTestEmbedder(mock)

	if _, err := e.EncodeQuery(context.Background(), "sleep retreats"); err != nil {
		t.Fatalf("EncodeQuery failed: %v", err)
	}
	got := mock.inputs[0]
	if !strings.HasPrefix(got, queryInstruction) || !strings.HasSuffix(got, "sleep retreats") {
		t.Errorf("query must carry the instruction prefix, got %q", got)
	}
}

func TestEncodeRetriesOnce(t *testing.T) {
	mock := &mockEmbeddingService{failures: 1}
	e := newTestEmbedder(mock)

	if _, err := e.EncodeDocument(context.Background(), "text"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if mock.calls != 2 {
		t.Errorf("expected 2 calls (initial + retry), got %d", mock.calls)
	}
}

func TestEncodeSurfacesRetrievalUnavailable(t *testing.T) {
	mock := &mockEmbeddingService{failures: 2}
	e := newTestEmbedder(mock)

	_, err := e.EncodeDocument(context.Background(), "text")
	if !errors.Is(err, models.ErrRetrievalUnavailable) {
		t.Errorf("expected ErrRetrievalUnavailable after retry exhaustion, got %v", err)
	}
	if mock.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", mock.calls)
	}
}

func TestEncodeEmptyText(t *testing.T) {
	e := newTestEmbedder(&mockEmbeddingService{})
	_, err := e.EncodeDocument(context.Background(), "")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty text, got %v", err)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder(); err == nil {
		t.Error("expected error when API key is missing")
	}
}
