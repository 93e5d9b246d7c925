package core

// Parameter is one labelled read-out shown next to the lattice.
type Parameter struct {
	Key   string
	Label string
	Value string
}

// ParameterControl describes a float parameter the viewer may adjust in
// Step increments. Bounds are optional.
type ParameterControl struct {
	Key   string
	Label string
	Step  float64

	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// Clamp limits v to the control's bounds.
func (c ParameterControl) Clamp(v float64) float64 {
	if c.HasMin && v < c.Min {
		return c.Min
	}
	if c.HasMax && v > c.Max {
		return c.Max
	}
	return v
}

// CanStep reports whether moving from v by direction×Step stays in bounds.
func (c ParameterControl) CanStep(v float64, direction int) bool {
	target := v + float64(direction)*c.Step
	if c.HasMin && direction < 0 && target < c.Min {
		return false
	}
	if c.HasMax && direction > 0 && target > c.Max {
		return false
	}
	return true
}

// Tunable is implemented by sims that expose read-outs and adjustable
// parameters to the viewer.
type Tunable interface {
	Parameters() []Parameter
	ParameterControls() []ParameterControl
	// FloatParameter returns the current value of an adjustable parameter.
	FloatParameter(key string) (float64, bool)
	// SetFloatParameter applies a new value and reports whether it was accepted.
	SetFloatParameter(key string, value float64) bool
}
