package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"healthbridge/internal/classifier"
	"healthbridge/internal/domain"
	"healthbridge/internal/engine"
)

// Request payloads

type PredictRequest struct {
	// Inputs maps field names to answers. Numbers and strings are accepted;
	// null or a missing key means unanswered.
	Inputs map[string]any `json:"inputs" jsonschema:"type=object,additionalProperties=true" example:"{\"age\":67,\"gender\":\"Male\"}"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	Role    string `json:"role,omitempty" enum:"service,clinician,operator"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Response payloads

type FieldResponse struct {
	Name        string   `json:"name"`
	Column      string   `json:"column"`
	Prompt      string   `json:"prompt"`
	Type        string   `json:"type" enum:"integer,float,enum,ordinal-range"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Options     []string `json:"options,omitempty"`
	Required    bool     `json:"required"`
	ZeroIsUnset bool     `json:"zero_is_unset,omitempty"`
}

type ModelResponse struct {
	Handle   string `json:"handle"`
	Loaded   bool   `json:"loaded"`
	Error    string `json:"error,omitempty"`
	LoadedAt string `json:"loaded_at,omitempty" format:"date-time"`
}

type WorkflowResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Enabled       bool            `json:"enabled"`
	MissingPolicy string          `json:"missing_policy" enum:"per-field,aggregate"`
	Labels        []string        `json:"labels"`
	Fields        []FieldResponse `json:"fields,omitempty"`
	Model         *ModelResponse  `json:"model,omitempty"`
}

type FailureResponse struct {
	Kind    string `json:"kind" enum:"invalid_input,unavailable"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type PredictResponse struct {
	PredictionID string           `json:"prediction_id"`
	Workflow     string           `json:"workflow"`
	Success      bool             `json:"success"`
	Label        string           `json:"label,omitempty"`
	Verdict      string           `json:"verdict,omitempty"`
	Advisory     string           `json:"advisory,omitempty"`
	Severity     *int             `json:"severity,omitempty"`
	Positive     *bool            `json:"positive,omitempty"`
	Failure      *FailureResponse `json:"failure,omitempty"`
	// Warnings lists problems that did not affect the outcome itself.
	Warnings []string `json:"warnings,omitempty"`
}

type PredictionResponse struct {
	ID          string            `json:"id"`
	Workflow    string            `json:"workflow"`
	ActorID     string            `json:"actor_id"`
	Status      string            `json:"status" enum:"succeeded,rejected,failed"`
	Label       string            `json:"label,omitempty"`
	Verdict     string            `json:"verdict,omitempty"`
	FailureCode string            `json:"failure_code,omitempty"`
	FailureText string            `json:"failure_text,omitempty"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	Model       string            `json:"model,omitempty"`
	DurationMS  int64             `json:"duration_ms"`
	CreatedAt   string            `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	Workflow   string         `json:"workflow,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only returned on creation.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	Source      string   `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedPredictions struct {
	Items      []PredictionResponse `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func workflowResponse(w engine.WorkflowInfo, withFields bool) WorkflowResponse {
	res := WorkflowResponse{
		ID:            string(w.ID),
		Title:         w.Title,
		Enabled:       w.Enabled,
		MissingPolicy: w.MissingPolicy,
		Labels:        []string{},
		Model:         modelResponse(w.Model),
	}
	for _, l := range w.Labels {
		res.Labels = append(res.Labels, string(l))
	}
	if withFields {
		for _, f := range w.Fields {
			res.Fields = append(res.Fields, FieldResponse{
				Name:        f.Name,
				Column:      f.Column,
				Prompt:      f.Prompt,
				Type:        string(f.Type),
				Min:         f.Min,
				Max:         f.Max,
				Options:     f.Options,
				Required:    f.Required,
				ZeroIsUnset: f.ZeroIsUnset,
			})
		}
	}
	return res
}

func modelResponse(s *classifier.Status) *ModelResponse {
	if s == nil {
		return nil
	}
	return &ModelResponse{Handle: s.Handle, Loaded: s.Loaded, Error: s.Error, LoadedAt: s.LoadedAt}
}

func predictResponse(out domain.PredictionOutcome, p domain.Prediction) PredictResponse {
	res := PredictResponse{
		PredictionID: p.ID,
		Workflow:     string(p.Workflow),
		Success:      out.Success,
		Label:        string(out.Label),
		Verdict:      out.Verdict,
		Advisory:     out.Advisory,
		Severity:     out.Severity,
		Positive:     out.Positive,
	}
	if f := out.Failure; f != nil {
		res.Failure = &FailureResponse{Kind: string(f.Kind), Code: f.Code, Field: f.Field, Message: f.Message}
	}
	return res
}

func predictionResponse(p domain.Prediction) PredictionResponse {
	res := PredictionResponse{
		ID:          p.ID,
		Workflow:    string(p.Workflow),
		ActorID:     p.ActorID,
		Status:      p.Status,
		Label:       p.Label,
		Verdict:     p.Verdict,
		FailureCode: p.FailureCode,
		FailureText: p.FailureText,
		Model:       p.Model,
		DurationMS:  p.DurationMS,
		CreatedAt:   p.CreatedAt,
	}
	if p.InputJSON != "" {
		var inputs map[string]string
		if err := json.Unmarshal([]byte(p.InputJSON), &inputs); err == nil {
			res.Inputs = inputs
		}
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	payload := decodeJSONMap(e.Payload)
	if payload == nil {
		payload = map[string]any{}
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		Workflow:   e.Workflow,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, Role: k.Role, CreatedAt: k.CreatedAt}
}

// rawInput converts decoded JSON answers to the text form the questionnaire
// works on. Integral numbers render without a fraction.
func rawInput(in map[string]any) (domain.RawInput, error) {
	raw := domain.RawInput{}
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			raw[k] = val
		case float64:
			if val == float64(int64(val)) {
				raw[k] = strconv.FormatInt(int64(val), 10)
			} else {
				raw[k] = strconv.FormatFloat(val, 'f', -1, 64)
			}
		case json.Number:
			raw[k] = val.String()
		default:
			return nil, fmt.Errorf("invalid value for %s: expected string or number", k)
		}
	}
	return raw, nil
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
