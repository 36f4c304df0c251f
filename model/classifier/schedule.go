package classifier

import "math"

/*
LinearSchedule increases learning rate linearly from 0 to Base during Warmup steps
and then decreases it linearly to 0 at Total steps
*/
type LinearSchedule struct {
	Base   float64
	Warmup int
	Total  int
}

/*
LR returns learning rate for the zero based optimizer step
*/
func (s LinearSchedule) LR(step int) float64 {
	if step < s.Warmup {
		return s.Base * float64(step) / float64(s.Warmup)
	}
	if s.Total <= s.Warmup {
		return 0
	}
	return s.Base * math.Max(0, float64(s.Total-step)/float64(s.Total-s.Warmup))
}
