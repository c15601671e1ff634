package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedJob is returned when a job lacks its id or its data.
var ErrMalformedJob = errors.New("malformed job")

// EntityName names one category of tabular input (e.g. "volumes", "vms").
type EntityName string

// Record is a single row of an entity batch, as decoded from JSON.
type Record map[string]any

// Job is a unit of work: an identifier and a bundle of per-entity records.
// Both keys are mandatory; a nil pointer or nil map means the key was absent.
type Job struct {
	ID   *string                 `json:"id" validate:"required"`
	Data map[EntityName][]Record `json:"data" validate:"required"`
}

// NewJob builds a well-formed job.
func NewJob(id string, data map[EntityName][]Record) *Job {
	if data == nil {
		data = map[EntityName][]Record{}
	}
	return &Job{ID: &id, Data: data}
}

var jobValidate = validator.New()

// Parse checks that the job carries both an id and data and returns them.
func (j *Job) Parse() (string, map[EntityName][]Record, error) {
	if j == nil {
		return "", nil, fmt.Errorf("%w: job is nil", ErrMalformedJob)
	}
	if err := jobValidate.Struct(j); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", nil, fmt.Errorf("%w: field '%s' failed on the '%s' tag", ErrMalformedJob, verrs[0].Field(), verrs[0].Tag())
		}
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	return *j.ID, j.Data, nil
}
