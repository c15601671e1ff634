package http

import (
	"encoding/json"
	"fmt"

	"validation-worker/internal/domain"
)

// LaunchJobRequest is the Data Transfer Object for launching a job.
// The job is kept raw: a job lacking id or data is still launched and
// aborted by its worker.
type LaunchJobRequest struct {
	NextService string          `json:"next_service" validate:"required,url"`
	Job         json.RawMessage `json:"job" validate:"required"`
}

// ToDomainJob decodes the raw job.
func (r *LaunchJobRequest) ToDomainJob() (*domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(r.Job, &job); err != nil {
		return nil, fmt.Errorf("job must be an object of entity record lists: %w", err)
	}
	return &job, nil
}

// LaunchJobResponse acknowledges a launched job.
type LaunchJobResponse struct {
	ExecutionID string `json:"execution_id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
}
