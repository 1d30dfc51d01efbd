package analysis

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidAnalysis = errors.New("invalid analysis")
	ErrConvergence     = errors.New("convergence failure")
	ErrTimeStep        = errors.New("time step too small")
)

// ConvergenceError reports that Newton and every enabled continuation
// strategy failed. Err is the last solver error, if any.
type ConvergenceError struct {
	Analysis   Kind
	Where      string // sweep point or time, empty for a plain operating point
	Iterations int
	Residual   float64
	Tried      []Strategy
	Last       []float64 // last iterate, index 0 is ground
	Err        error
}

func (e *ConvergenceError) Error() string {
	tried := make([]string, len(e.Tried))
	for i, s := range e.Tried {
		tried[i] = s.String()
	}
	msg := fmt.Sprintf("%s: no convergence after %d iterations (residual %.3g, tried newton", e.Analysis, e.Iterations, e.Residual)
	if len(tried) > 0 {
		msg += ", " + strings.Join(tried, ", ")
	}
	msg += ")"
	if e.Where != "" {
		msg += " at " + e.Where
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConvergenceError) Unwrap() error { return e.Err }

func (e *ConvergenceError) Is(target error) bool { return target == ErrConvergence }

// TimeStepError reports a transient run whose step fell below the minimum.
// Partial holds the waveform accepted so far.
type TimeStepError struct {
	Time    float64
	Step    float64
	MinStep float64
	Partial *RunResult
	Err     error
}

func (e *TimeStepError) Error() string {
	msg := fmt.Sprintf("tran: step %.3g below minimum %.3g at t=%.6g", e.Step, e.MinStep, e.Time)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeStepError) Unwrap() error { return e.Err }

func (e *TimeStepError) Is(target error) bool { return target == ErrTimeStep }
