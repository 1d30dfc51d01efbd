package device

import "math"

// vcrit is the junction voltage above which the exponential is steep
// enough that Newton updates get limited.
func vcrit(nvt, is float64) float64 {
	return nvt * math.Log(nvt/(math.Sqrt2*is))
}

// pnjlim limits a pn junction update from vold to vnew to a logarithmic
// step once the junction conducts. It reports whether vnew was changed.
func pnjlim(vnew, vold, nvt, vcrit float64) (float64, bool) {
	if vnew <= vcrit || math.Abs(vnew-vold) <= 2*nvt {
		return vnew, false
	}
	if vold > 0 {
		if arg := 1 + (vnew-vold)/nvt; arg > 0 {
			return vold + nvt*math.Log(arg), true
		}
	}
	return vcrit, true
}

// fetlim limits a gate-source update relative to the threshold vto.
func fetlim(vnew, vold, vto float64) float64 {
	vtsthi := math.Abs(2*(vold-vto)) + 2
	vtstlo := vtsthi/2 + 2
	vtox := vto + 3.5
	delv := vnew - vold

	if vold >= vto {
		if vold >= vtox {
			if delv <= 0 {
				// going off
				if vnew >= vtox {
					if -delv > vtstlo {
						return vold - vtstlo
					}
					return vnew
				}
				return math.Max(vnew, vto+2)
			}
			// staying on
			if delv >= vtsthi {
				return vold + vtsthi
			}
			return vnew
		}
		// middle region
		if delv <= 0 {
			return math.Max(vnew, vto-0.5)
		}
		return math.Min(vnew, vto+4)
	}

	// off
	if delv <= 0 {
		if -delv > vtsthi {
			return vold - vtsthi
		}
		return vnew
	}
	if vtemp := vto + 0.5; vnew > vtemp {
		return vtemp
	}
	if delv > vtstlo {
		return vold + vtstlo
	}
	return vnew
}

// limvds limits a drain-source update.
func limvds(vnew, vold float64) float64 {
	if vold >= 3.5 {
		if vnew > vold {
			return math.Min(vnew, 3*vold+2)
		}
		if vnew < 3.5 {
			return math.Max(vnew, 2)
		}
		return vnew
	}
	if vnew > vold {
		return math.Min(vnew, 4)
	}
	return math.Max(vnew, -0.5)
}
