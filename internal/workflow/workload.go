package workflow

import "math"

// Workload is an assignee's open ticket count against capacity.
type Workload struct {
	CurrentLoad int `json:"current_load"`
	MaxCapacity int `json:"max_capacity"`
}

// Efficiency is the remaining capacity as a whole percentage in [0,100].
// A non-positive capacity yields 0.
func (w Workload) Efficiency() int {
	if w.MaxCapacity <= 0 {
		return 0
	}
	eff := math.Round(float64(w.MaxCapacity-w.CurrentLoad) / float64(w.MaxCapacity) * 100)
	return int(math.Max(0, math.Min(100, eff)))
}

// Ratio is CurrentLoad/MaxCapacity, or 0 without capacity.
func (w Workload) Ratio() float64 {
	if w.MaxCapacity <= 0 {
		return 0
	}
	return float64(w.CurrentLoad) / float64(w.MaxCapacity)
}

// WorkloadBalance is the evaluated workload reported to the dashboard.
type WorkloadBalance struct {
	Workload
	Efficiency int `json:"efficiency"`
}
