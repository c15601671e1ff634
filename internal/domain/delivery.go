package domain

import (
	"errors"
	"fmt"
)

// ErrDeliveryFailed is matched by every error returned once all delivery
// attempts to the next service are exhausted.
var ErrDeliveryFailed = errors.New("delivery failed")

// DeliveryError reports the attempt count and the last failure seen.
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDeliveryFailed) hold for any DeliveryError.
func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }
