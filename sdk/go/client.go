package healthbridgesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HealthBridge HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		APIKey:   apiKey,
		Timeout:  10 * time.Second,
	}
}

// Field is one questionnaire input.
type Field struct {
	Name     string   `json:"name"`
	Prompt   string   `json:"prompt"`
	Type     string   `json:"type"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

// Model is the load state of a workflow's model.
type Model struct {
	Handle   string `json:"handle"`
	Loaded   bool   `json:"loaded"`
	Error    string `json:"error,omitempty"`
	LoadedAt string `json:"loaded_at,omitempty"`
}

// Workflow represents a questionnaire and its model.
type Workflow struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Enabled       bool     `json:"enabled"`
	MissingPolicy string   `json:"missing_policy"`
	Labels        []string `json:"labels"`
	Fields        []Field  `json:"fields,omitempty"`
	Model         *Model   `json:"model,omitempty"`
}

// Failure explains why a prediction did not produce a label.
type Failure struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Outcome is the result of a prediction call. Invalid answers come back as
// an Outcome with Success false, not as an error.
type Outcome struct {
	PredictionID string   `json:"prediction_id"`
	Workflow     string   `json:"workflow"`
	Success      bool     `json:"success"`
	Label        string   `json:"label,omitempty"`
	Verdict      string   `json:"verdict,omitempty"`
	Advisory     string   `json:"advisory,omitempty"`
	Severity     *int     `json:"severity,omitempty"`
	Positive     *bool    `json:"positive,omitempty"`
	Failure      *Failure `json:"failure,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Prediction is a recorded prediction attempt.
type Prediction struct {
	ID          string            `json:"id"`
	Workflow    string            `json:"workflow"`
	ActorID     string            `json:"actor_id"`
	Status      string            `json:"status"`
	Label       string            `json:"label,omitempty"`
	Verdict     string            `json:"verdict,omitempty"`
	FailureCode string            `json:"failure_code,omitempty"`
	FailureText string            `json:"failure_text,omitempty"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	Model       string            `json:"model,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
	CreatedAt   string            `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	Workflow   string         `json:"workflow,omitempty"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedPredictions wraps history listings with cursors.
type PaginatedPredictions struct {
	Items      []Prediction `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Workflows lists every workflow.
func (c *Client) Workflows(ctx context.Context) ([]Workflow, error) {
	var resp []Workflow
	err := c.do(ctx, http.MethodGet, "workflows", nil, &resp)
	return resp, err
}

// Workflow fetches one workflow with its fields.
func (c *Client) Workflow(ctx context.Context, id string) (Workflow, error) {
	var resp Workflow
	err := c.do(ctx, http.MethodGet, "workflows/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Predict submits answers keyed by field name. Values should be strings or
// numbers; nil leaves a field unanswered.
func (c *Client) Predict(ctx context.Context, workflow string, inputs map[string]any) (Outcome, error) {
	var resp Outcome
	endpoint := fmt.Sprintf("workflows/%s/predict", url.PathEscape(workflow))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"inputs": inputs}, &resp)
	return resp, err
}

// ReloadModel asks the server to reload a workflow's model.
func (c *Client) ReloadModel(ctx context.Context, workflow string) (Workflow, error) {
	var resp Workflow
	endpoint := fmt.Sprintf("workflows/%s/reload", url.PathEscape(workflow))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Predictions returns a page of recorded predictions, newest first.
func (c *Client) Predictions(ctx context.Context, workflow string, limit int, cursor string) (PaginatedPredictions, error) {
	q := url.Values{}
	if workflow != "" {
		q.Set("workflow", workflow)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedPredictions
	err := c.do(ctx, http.MethodGet, withQuery("predictions", q), nil, &resp)
	return resp, err
}

// Prediction fetches one recorded prediction.
func (c *Client) Prediction(ctx context.Context, id string) (Prediction, error) {
	var resp Prediction
	err := c.do(ctx, http.MethodGet, "predictions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
