package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/internal/llm"
)

func chatReply(content string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return b
}

func TestExtractRows(t *testing.T) {
	var gotAuth, gotTitle string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write(chatReply(`{"report_week":36,"rows":[{"pathogen":"新型冠状病毒","ili_percent":"6.8%","sari_percent":3.7}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "m", Title: "surveillance-tracker"}, nil)
	require.NoError(t, err)

	p, raw, err := c.ExtractRows(context.Background(), llm.ExtractRequest{DocumentID: "d", Text: "表1 ..."})
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, "Bearer k", gotAuth)
	assert.Equal(t, "surveillance-tracker", gotTitle)
	assert.Equal(t, "m", gotBody["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, gotBody["response_format"])

	assert.Equal(t, 36, p.ReportWeek)
	require.Len(t, p.Rows, 1)
	assert.Equal(t, 6.8, *p.Rows[0].ILIPercent)
	assert.Equal(t, 3.7, *p.Rows[0].SARIPercent)
}

func TestExtractRows_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, _, err = c.ExtractRows(context.Background(), llm.ExtractRequest{Text: "x"})
	var httpErr *llm.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.False(t, httpErr.Retryable())
}

func TestExtractRows_NoChoicesAndBadPayload(t *testing.T) {
	replies := [][]byte{
		[]byte(`{"choices":[]}`),
		chatReply(`{"rows":[{"pathogen":"腺病毒","ili_percent":{"v":1},"sari_percent":true,"extra":1}], "report_week":"x"}`),
		chatReply(`no json at all`),
	}
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(replies[i])
		i++
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, LenientOptional: true}, nil)
	require.NoError(t, err)

	_, _, err = c.ExtractRows(context.Background(), llm.ExtractRequest{Text: "x"})
	assert.ErrorContains(t, err, "no choices")

	// unusable rates become null and unknown keys go, so the row survives
	p, _, err := c.ExtractRows(context.Background(), llm.ExtractRequest{Text: "x"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	assert.Nil(t, p.Rows[0].ILIPercent)
	assert.Nil(t, p.Rows[0].SARIPercent)

	_, _, err = c.ExtractRows(context.Background(), llm.ExtractRequest{Text: "x"})
	assert.Error(t, err)
}

func TestExtractRows_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = c.ExtractRows(ctx, llm.ExtractRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
