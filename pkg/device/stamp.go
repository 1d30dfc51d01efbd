package device

import "github.com/edp1096/mna-spice/pkg/matrix"

// Ground (index 0) rows and columns are dropped by the matrix.

func stampConductance(m matrix.DeviceMatrix, n1, n2 int, g float64) {
	m.AddElement(n1, n1, g)
	m.AddElement(n1, n2, -g)
	m.AddElement(n2, n1, -g)
	m.AddElement(n2, n2, g)
}

func stampAdmittance(m matrix.DeviceMatrix, n1, n2 int, re, im float64) {
	m.AddComplexElement(n1, n1, re, im)
	m.AddComplexElement(n1, n2, -re, -im)
	m.AddComplexElement(n2, n1, -re, -im)
	m.AddComplexElement(n2, n2, re, im)
}

// stampCurrent stamps a current i flowing from n1 through the device to n2.
func stampCurrent(m matrix.DeviceMatrix, n1, n2 int, i float64) {
	m.AddRHS(n1, -i)
	m.AddRHS(n2, i)
}

// stampBranch couples branch current b into the KCL rows of n1/n2 and adds
// V(n1) - V(n2) to the branch equation.
func stampBranch(m matrix.DeviceMatrix, n1, n2, b int) {
	m.AddElement(n1, b, 1)
	m.AddElement(n2, b, -1)
	m.AddElement(b, n1, 1)
	m.AddElement(b, n2, -1)
}

// stampTransconductance stamps a current g*(V(cp)-V(cn)) flowing from op
// through the device to on.
func stampTransconductance(m matrix.DeviceMatrix, op, on, cp, cn int, g float64) {
	m.AddElement(op, cp, g)
	m.AddElement(op, cn, -g)
	m.AddElement(on, cp, -g)
	m.AddElement(on, cn, g)
}
