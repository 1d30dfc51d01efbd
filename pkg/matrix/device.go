package matrix

// DeviceMatrix is the write-only view of the MNA system handed to devices.
// Indices are 1-based; row or column 0 is ground and is dropped.
type DeviceMatrix interface {
	AddElement(i, j int, value float64)
	AddRHS(i int, value float64)
	AddComplexElement(i, j int, real, imag float64)
	AddComplexRHS(i int, real, imag float64)
}
