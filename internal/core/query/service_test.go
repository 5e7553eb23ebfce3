package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"creator-coach/internal/core/retriever"
	"creator-coach/pkg/apperror/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	hits     []retriever.Hit
	err      error
	excluded []string
}

func (s *stubSearcher) Search(_ context.Context, _, _ string, _ int, excluded []string) ([]retriever.Hit, error) {
	s.excluded = excluded
	return s.hits, s.err
}

func newService(t *testing.T, searcher Searcher, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	svc, err := NewService(searcher, Config{APIKey: "k", BaseURL: srv.URL + "/", Model: "gpt-test", MaxTokens: 64})
	require.NoError(t, err)
	return svc
}

func TestRun_GroundedAnswer(t *testing.T) {
	searcher := &stubSearcher{hits: []retriever.Hit{
		{ChunkID: "c1", ChunkIndex: 3, Score: 0.9, Content: "- Post at the same time every day.\nSecond line."},
	}}
	var got chatRequest
	svc := newService(t, searcher, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Be consistent. "}}]}`))
	})

	resp, err := svc.Run(context.Background(), Request{Question: "How often?", Title: "advice", ExcludeIDs: []string{"old"}})
	require.NoError(t, err)
	assert.Equal(t, "Be consistent.", resp.Answer)
	require.Len(t, resp.Contexts, 1)
	assert.Equal(t, "Post at the same time every day.", resp.Contexts[0].Snippet)
	assert.Equal(t, []string{"old"}, searcher.excluded)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "[1] (chunk=3)")
	assert.True(t, strings.HasPrefix(got.Messages[1].Content, "Question: How often?"))
}

func TestRun_NoContextSkipsLLM(t *testing.T) {
	called := false
	svc := newService(t, &stubSearcher{}, func(w http.ResponseWriter, r *http.Request) { called = true })

	resp, err := svc.Run(context.Background(), Request{Question: "anything"})
	require.NoError(t, err)
	assert.Equal(t, NoEvidenceAnswer, resp.Answer)
	assert.Empty(t, resp.Contexts)
	assert.False(t, called)
}

func TestRun_Errors(t *testing.T) {
	svc := newService(t, &stubSearcher{err: retriever.ErrSourceNotConfigured}, nil)
	_, err := svc.Run(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, retriever.ErrSourceNotConfigured)

	_, err = svc.Run(context.Background(), Request{Question: "  "})
	var coded status.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, status.MissingParams, coded.ErrorCode())
}

func TestRun_CompletionFailure(t *testing.T) {
	searcher := &stubSearcher{hits: []retriever.Hit{{ChunkID: "c1", Content: "tip"}}}
	svc := newService(t, searcher, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := svc.Run(context.Background(), Request{Question: "q"})
	var coded status.CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, status.QueryCompletionFailed, coded.ErrorCode())
	assert.False(t, errors.Is(err, retriever.ErrExhausted))
}
