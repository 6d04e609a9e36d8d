package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"healthbridge/internal/domain"
)

// Remote is a model served over HTTP. It posts the feature table and reads
// one label per row.
type Remote struct {
	url    string
	client *http.Client
}

type remoteRequest struct {
	Columns []string         `json:"columns"`
	Rows    [][]domain.Value `json:"rows"`
}

type remoteResponse struct {
	Labels []json.RawMessage `json:"labels"`
}

func NewRemote(rawURL string, client *http.Client) (*Remote, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid model url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("model url %s has no host", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{url: u.String(), client: client}, nil
}

func (r *Remote) Predict(ctx context.Context, columns []string, rows [][]domain.Value) ([]string, error) {
	body, err := json.Marshal(remoteRequest{Columns: columns, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model service returned %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	var out remoteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	labels := make([]string, 0, len(out.Labels))
	for _, raw := range out.Labels {
		l, err := labelString(raw)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// labelString renders a JSON label as text; integral numbers such as 1.0
// become "1".
func labelString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", fmt.Errorf("label %s is neither string nor number", string(raw))
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
