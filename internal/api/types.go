package api

import "github.com/elata-labs/eegpipe/internal/config"

// pipelineSummary is one entry of GET /api/pipelines.
type pipelineSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// updateConfigRequest is the body of POST /api/pipelines/{id}.
type updateConfigRequest struct {
	Config *config.Document `json:"config"`
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}
