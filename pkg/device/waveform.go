package device

import (
	"fmt"
	"math"
	"slices"
)

const maxPulseCycles = 100000

// Waveform is the time-domain value of an independent source.
type Waveform struct {
	Type SourceType

	// DC value, SIN offset
	DC float64
	// SIN params
	Amplitude float64
	Freq      float64
	Phase     float64 // degrees
	// PULSE params
	V1     float64
	V2     float64
	Delay  float64
	Rise   float64
	Fall   float64
	PWidth float64
	Period float64
	// PWL params
	Times  []float64
	Values []float64
}

// At returns the value at t. Zero PULSE rise and fall times are replaced
// by edge, see edges.
func (w *Waveform) At(t, edge float64) float64 {
	switch w.Type {
	case SIN:
		phaseRad := w.Phase * math.Pi / 180.0
		return w.DC + w.Amplitude*math.Sin(2.0*math.Pi*w.Freq*t+phaseRad)
	case PULSE:
		return w.pulse(t, edge)
	case PWL:
		return w.pwl(t)
	default:
		return w.DC
	}
}

// edges returns the rise and fall times with zero ones widened to edge,
// shrunk so that a periodic pulse still fits its period.
func (w *Waveform) edges(edge float64) (rise, fall float64) {
	rise, fall = w.Rise, w.Fall
	if w.Period > 0 {
		edge = math.Min(edge, (w.Period-w.Rise-w.PWidth-w.Fall)/2)
	}
	if edge <= 0 {
		return rise, fall
	}
	if rise == 0 {
		rise = edge
	}
	if fall == 0 {
		fall = edge
	}
	return rise, fall
}

func (w *Waveform) pulse(t, edge float64) float64 {
	if t <= w.Delay {
		return w.V1
	}
	rise, fall := w.edges(edge)

	t -= w.Delay
	if w.Period > 0 {
		t = math.Mod(t, w.Period)
	}

	if t < rise {
		return w.V1 + (w.V2-w.V1)*t/rise
	}
	if t < rise+w.PWidth {
		return w.V2
	}

	fallStart := rise + w.PWidth
	if t < fallStart+fall {
		return w.V2 - (w.V2-w.V1)*(t-fallStart)/fall
	}

	return w.V1
}

func (w *Waveform) pwl(t float64) float64 {
	if len(w.Times) == 0 {
		return 0
	}
	if t <= w.Times[0] {
		return w.Values[0]
	}

	lastIdx := len(w.Times) - 1
	if t >= w.Times[lastIdx] {
		return w.Values[lastIdx]
	}

	i, _ := slices.BinarySearch(w.Times, t)
	t1, t2 := w.Times[i-1], w.Times[i]
	v1, v2 := w.Values[i-1], w.Values[i]
	return v1 + (v2-v1)*(t-t1)/(t2-t1)
}

// Breakpoints lists the slope discontinuities in (0, tstop], ascending,
// for the same edge as At.
func (w *Waveform) Breakpoints(tstop, edge float64) []float64 {
	var points []float64
	add := func(t float64) {
		if t > 0 && t <= tstop {
			points = append(points, t)
		}
	}

	switch w.Type {
	case PULSE:
		rise, fall := w.edges(edge)
		for k := 0; k < maxPulseCycles; k++ {
			start := w.Delay + float64(k)*w.Period
			if start > tstop {
				break
			}
			add(start)
			add(start + rise)
			add(start + rise + w.PWidth)
			add(start + rise + w.PWidth + fall)
			if w.Period <= 0 {
				break
			}
		}
	case PWL:
		for _, t := range w.Times {
			add(t)
		}
	}

	slices.Sort(points)
	return slices.Compact(points)
}

func (w *Waveform) validate(device string) error {
	switch w.Type {
	case DC:
		return finite(device, "dc", w.DC)
	case SIN:
		for _, p := range []struct {
			name string
			v    float64
		}{{"offset", w.DC}, {"amplitude", w.Amplitude}, {"phase", w.Phase}} {
			if err := finite(device, p.name, p.v); err != nil {
				return err
			}
		}
		return nonNegative(device, "freq", w.Freq)
	case PULSE:
		if err := finite(device, "v1", w.V1); err != nil {
			return err
		}
		if err := finite(device, "v2", w.V2); err != nil {
			return err
		}
		for _, p := range []struct {
			name string
			v    float64
		}{{"delay", w.Delay}, {"rise", w.Rise}, {"fall", w.Fall}, {"width", w.PWidth}, {"period", w.Period}} {
			if err := nonNegative(device, p.name, p.v); err != nil {
				return err
			}
		}
		if w.Period > 0 && w.Rise+w.PWidth+w.Fall > w.Period {
			return &InvalidParameterError{Device: device, Param: "period", Value: w.Period,
				Reason: "shorter than rise + width + fall"}
		}
		return nil
	case PWL:
		if len(w.Times) == 0 || len(w.Times) != len(w.Values) {
			return &InvalidParameterError{Device: device, Param: "pwl", Value: float64(len(w.Times)),
				Reason: fmt.Sprintf("needs matching non-empty time/value lists (got %d/%d)", len(w.Times), len(w.Values))}
		}
		for i, t := range w.Times {
			if err := finite(device, "pwl value", w.Values[i]); err != nil {
				return err
			}
			if err := nonNegative(device, "pwl time", t); err != nil {
				return err
			}
			if i > 0 && t <= w.Times[i-1] {
				return &InvalidParameterError{Device: device, Param: "pwl time", Value: t,
					Reason: "times must be strictly increasing"}
			}
		}
		return nil
	}
	return &InvalidParameterError{Device: device, Param: "type", Value: float64(w.Type), Reason: "unknown source type"}
}
