package device

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrInvalidParameter = errors.New("invalid device parameter")
	ErrDeviceInUse      = errors.New("device already belongs to a circuit")
)

// InvalidParameterError reports a device parameter rejected before solving.
type InvalidParameterError struct {
	Device string
	Param  string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("device %s: invalid %s (%g): %s", e.Device, e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func positive(device, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &InvalidParameterError{Device: device, Param: param, Value: v, Reason: "must be positive and finite"}
	}
	return nil
}

func finite(device, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidParameterError{Device: device, Param: param, Value: v, Reason: "must be finite"}
	}
	return nil
}

func nonNegative(device, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return &InvalidParameterError{Device: device, Param: param, Value: v, Reason: "must be non-negative"}
	}
	return nil
}

// below accepts 0 <= v < limit.
func below(device, param string, v, limit float64) error {
	if math.IsNaN(v) || v < 0 || v >= limit {
		return &InvalidParameterError{Device: device, Param: param, Value: v,
			Reason: fmt.Sprintf("must be in [0, %g)", limit)}
	}
	return nil
}
