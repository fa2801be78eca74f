// Package web provides HTTP request and response types for the orchestrator API.
package web

// SubmitRunRequest is the request body for submitting a workflow run.
type SubmitRunRequest struct {
	Workflow string         `json:"workflow" validate:"required,min=1"`
	Params   map[string]any `json:"params,omitempty"`
	Epoch    int64          `json:"epoch,omitempty"    validate:"omitempty,gte=0"`
}

// SubmitRunResponse carries the accepted run's identifier.
type SubmitRunResponse struct {
	RunID string `json:"run_id"`
	Epoch int64  `json:"epoch"`
}

// EngagementSampleRequest is the request body for recording an engagement
// observation. The platform comes from the URL path.
type EngagementSampleRequest struct {
	Weekday int     `json:"weekday" validate:"gte=0,lte=6"`
	Hour    int     `json:"hour"    validate:"gte=0,lte=23"`
	Rate    float64 `json:"rate"    validate:"gte=0,lte=1"`
}
