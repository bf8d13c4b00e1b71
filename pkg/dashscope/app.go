package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// AppService calls Model Studio applications.
type AppService struct {
	client *Client
}

// AppRequest is one turn sent to an application.
type AppRequest struct {
	Prompt string
	// SessionID continues a multi-turn conversation kept by the server.
	SessionID string
	// HasThoughts asks the application to stream its reasoning as thoughts.
	HasThoughts bool
}

type appBody struct {
	Input struct {
		Prompt    string `json:"prompt"`
		SessionID string `json:"session_id,omitempty"`
	} `json:"input"`
	Parameters struct {
		IncrementalOutput bool `json:"incremental_output"`
		HasThoughts       bool `json:"has_thoughts,omitempty"`
	} `json:"parameters"`
	Debug struct{} `json:"debug"`
}

// Completion starts a streaming completion and returns the unread SSE body.
// Output is requested incrementally, so each data line carries output.text
// as the next substring. The caller must close the body.
func (s *AppService) Completion(ctx context.Context, appID string, req *AppRequest) (io.ReadCloser, error) {
	if appID == "" {
		return nil, fmt.Errorf("dashscope: app id is required")
	}
	var body appBody
	body.Input.Prompt = req.Prompt
	body.Input.SessionID = req.SessionID
	body.Parameters.IncrementalOutput = true
	body.Parameters.HasThoughts = req.HasThoughts
	data, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("dashscope: marshal request: %w", err)
	}

	c := s.client
	header, err := c.header()
	if err != nil {
		return nil, err
	}
	endpoint, err := url.JoinPath(c.httpBase, "api/v1/apps", appID, "completion")
	if err != nil {
		return nil, fmt.Errorf("dashscope: invalid http base url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dashscope: create request: %w", err)
	}
	httpReq.Header = header
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-DashScope-SSE", "enable")

	c.logger.Debug("dashscope/app: completion", "app", appID, "session", req.SessionID)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dashscope: send request: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errorFromResponse(resp)
	}
	return resp.Body, nil
}
