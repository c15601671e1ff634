// Package validation adapts materialized batches to domain validators.
package validation

import (
	"context"
	"fmt"

	"validation-worker/internal/domain"
	"validation-worker/internal/tabular"
)

// Validator inspects a materialized batch and produces a structured result.
// Implementations live outside this service or behind RemoteValidator.
type Validator interface {
	Validate(ctx context.Context, batch *tabular.Batch) (domain.Result, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, batch *tabular.Batch) (domain.Result, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, batch *tabular.Batch) (domain.Result, error) {
	return f(ctx, batch)
}

// Invoker pairs a kind with its validator.
type Invoker struct {
	kind      Kind
	validator Validator
}

// NewInvoker creates an invoker for kind.
func NewInvoker(kind Kind, v Validator) *Invoker {
	return &Invoker{kind: kind, validator: v}
}

// Kind returns the kind this invoker serves.
func (i *Invoker) Kind() Kind { return i.kind }

// Materialize builds the batch for this invoker's entity list.
func (i *Invoker) Materialize(raw map[domain.EntityName][]domain.Record) *tabular.Batch {
	return tabular.Materialize(raw, i.kind.Entities)
}

// Invoke runs the validator on batch and renders its result as a mapping.
// Errors from the validator are returned as-is; a panic becomes an error
// wrapping domain.ErrValidatorPanic.
func (i *Invoker) Invoke(ctx context.Context, batch *tabular.Batch) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%w: %s: %v", domain.ErrValidatorPanic, i.kind.Name, r)
		}
	}()

	result, err := i.validator.Validate(ctx, batch)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}

	out, err = result.ToMap()
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s result to a mapping: %w", i.kind.Name, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
