package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

// Judgement is the oracle's verdict on a submission against nearby candidates.
type Judgement struct {
	IsDuplicate bool   `json:"is_duplicate"`
	MatchedID   string `json:"matched_issue_id"`
}

// Client calls a chat-completions endpoint to judge whether a new submission
// duplicates one of the nearby candidate issues. Callers must treat any error
// as "not a duplicate": the oracle is advisory and the platform keeps working
// without it.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient constructs an oracle client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

const systemPrompt = `You are a civic issue deduplication assistant. Given a new issue report and a list of existing nearby issues in the same category, decide whether the new report describes the same underlying problem as one of the existing issues. Respond by calling the report_duplicate_check function.`

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice any           `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type verdictArgs struct {
	IsDuplicate    bool   `json:"is_duplicate"`
	MatchedIssueID string `json:"matched_issue_id"`
}

// Judge asks the oracle whether the submission duplicates a candidate.
func (c *Client) Judge(ctx context.Context, title, description string, candidates []models.IssueCandidate) (*Judgement, error) {
	if len(candidates) == 0 {
		return &Judgement{}, nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "New report:\nTitle: %s\nDescription: %s\n\nExisting nearby issues:\n", title, description)
	for _, cand := range candidates {
		fmt.Fprintf(&buf, "- id=%s title=%q description=%q\n", cand.ID, cand.Title, cand.Description)
	}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buf.String()},
		},
		Tools: []tool{{
			Type: "function",
			Function: toolFunction{
				Name:        "report_duplicate_check",
				Description: "Report whether the new issue duplicates an existing one",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"is_duplicate":     map[string]any{"type": "boolean"},
						"matched_issue_id": map[string]any{"type": "string"},
					},
					"required": []string{"is_duplicate"},
				},
			},
		}},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]string{"name": "report_duplicate_check"},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode oracle response: %w", err)
	}
	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("oracle response missing tool call")
	}

	call := parsed.Choices[0].Message.ToolCalls[0]
	var args verdictArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("decode oracle verdict: %w", err)
	}

	if args.IsDuplicate && args.MatchedIssueID != "" {
		// A verdict naming an id outside the candidate window is discarded.
		known := false
		for _, cand := range candidates {
			if cand.ID == args.MatchedIssueID {
				known = true
				break
			}
		}
		if !known {
			c.logger.Warn("oracle matched unknown issue id, ignoring verdict",
				zap.String("matched_id", args.MatchedIssueID))
			return &Judgement{}, nil
		}
	}
	if args.IsDuplicate && args.MatchedIssueID == "" {
		return &Judgement{}, nil
	}

	return &Judgement{IsDuplicate: args.IsDuplicate, MatchedID: args.MatchedIssueID}, nil
}
