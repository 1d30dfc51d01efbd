package util

type IntegrationMethod int

const (
	BackwardEulerMethod IntegrationMethod = iota
	TrapezoidalMethod
)

func (m IntegrationMethod) String() string {
	switch m {
	case TrapezoidalMethod:
		return "trap"
	default:
		return "euler"
	}
}

// Order is the order of accuracy of the method.
func (m IntegrationMethod) Order() int {
	if m == TrapezoidalMethod {
		return 2
	}
	return 1
}

// GetIntegratorCoeff returns ag0, the factor multiplying the new state in the
// discretized derivative ds/dt ~ ag0*(s - sPrev) (minus the previous
// derivative for trapezoidal).
func GetIntegratorCoeff(method IntegrationMethod, dt float64) float64 {
	switch method {
	case TrapezoidalMethod:
		return 2.0 / dt
	default:
		return 1.0 / dt
	}
}

// Companion discretizes y = k*ds/dt over a step dt into y = geq*s - ieq.
// sPrev and yPrev are the state and its dual at the last accepted point.
func Companion(method IntegrationMethod, k, dt, sPrev, yPrev float64) (geq, ieq float64) {
	geq = k * GetIntegratorCoeff(method, dt)
	ieq = geq * sPrev
	if method == TrapezoidalMethod {
		ieq += yPrev
	}
	return geq, ieq
}
