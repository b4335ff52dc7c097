package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

func toolCallResponse(t *testing.T, args map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	body := map[string]any{
		"choices": []map[string]any{{
			"message": map[string]any{
				"tool_calls": []map[string]any{{
					"function": map[string]any{
						"name":      "report_duplicate_check",
						"arguments": string(raw),
					},
				}},
			},
		}},
	}
	out, err := json.Marshal(body)
	require.NoError(t, err)
	return string(out)
}

func candidates() []models.IssueCandidate {
	return []models.IssueCandidate{
		{ID: "issue-1", Title: "Pothole on Main St", Description: "Deep pothole"},
		{ID: "issue-2", Title: "Cracked pavement", Description: "Near the school"},
	}
}

func TestOracleJudgeDuplicate(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "report_duplicate_check", req.Tools[0].Function.Name)

		w.Write([]byte(toolCallResponse(t, map[string]any{ //nolint:errcheck
			"is_duplicate":     true,
			"matched_issue_id": "issue-1",
		})))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	verdict, err := client.Judge(context.Background(), "Pothole", "Big pothole on Main", candidates())
	require.NoError(t, err)
	assert.True(t, verdict.IsDuplicate)
	assert.Equal(t, "issue-1", verdict.MatchedID)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestOracleJudgeDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(toolCallResponse(t, map[string]any{"is_duplicate": false}))) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	verdict, err := client.Judge(context.Background(), "New issue", "Unrelated", candidates())
	require.NoError(t, err)
	assert.False(t, verdict.IsDuplicate)
	assert.Empty(t, verdict.MatchedID)
}

func TestOracleJudgeDiscardsUnknownMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(toolCallResponse(t, map[string]any{ //nolint:errcheck
			"is_duplicate":     true,
			"matched_issue_id": "issue-999",
		})))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	verdict, err := client.Judge(context.Background(), "Pothole", "desc", candidates())
	require.NoError(t, err)
	assert.False(t, verdict.IsDuplicate)
	assert.Empty(t, verdict.MatchedID)
}

func TestOracleJudgeDuplicateWithoutMatchID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(toolCallResponse(t, map[string]any{"is_duplicate": true}))) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	verdict, err := client.Judge(context.Background(), "Pothole", "desc", candidates())
	require.NoError(t, err)
	assert.False(t, verdict.IsDuplicate)
}

func TestOracleJudgeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	_, err := client.Judge(context.Background(), "Pothole", "desc", candidates())
	require.Error(t, err)
}

func TestOracleJudgeMissingToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	_, err := client.Judge(context.Background(), "Pothole", "desc", candidates())
	require.Error(t, err)
}

func TestOracleJudgeNoCandidates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", "test-model", time.Second, nil)
	verdict, err := client.Judge(context.Background(), "Pothole", "desc", nil)
	require.NoError(t, err)
	assert.False(t, verdict.IsDuplicate)
	assert.Equal(t, 0, calls)
}
