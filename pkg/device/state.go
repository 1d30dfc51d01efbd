package device

import "slices"

// State is the per-run memory of a circuit's devices: the last accepted
// solution and a flat value arena partitioned by device.
type State struct {
	Prev []float64

	values  []float64
	offsets []int
}

func NewState(devices []Device, size int) *State {
	offsets := make([]int, len(devices)+1)
	n := 0
	for i, dev := range devices {
		offsets[i] = n
		if sd, ok := dev.(Stateful); ok {
			n += sd.StateSize()
		}
	}
	offsets[len(devices)] = n

	return &State{
		Prev:    make([]float64, size+1),
		values:  make([]float64, n),
		offsets: offsets,
	}
}

// Slots returns the values reserved for the device at at.Index.
func (s *State) Slots(at Slot) []float64 {
	return s.values[s.offsets[at.Index]:s.offsets[at.Index+1]]
}

// Accept makes x the previous solution.
func (s *State) Accept(x []float64) {
	copy(s.Prev, x)
}

// Clone returns an independent copy of s.
func (s *State) Clone() *State {
	return &State{
		Prev:    slices.Clone(s.Prev),
		values:  slices.Clone(s.values),
		offsets: s.offsets,
	}
}

// CopyFrom overwrites s with src, a state of the same circuit.
func (s *State) CopyFrom(src *State) {
	copy(s.Prev, src.Prev)
	copy(s.values, src.values)
}
