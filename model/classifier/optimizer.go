package classifier

import (
	"math"
)

/*
AdamW is the Adam optimizer with decoupled weight decay
*/
type AdamW struct {
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64

	step int
	m, v map[*Param][]float64
}

/*
NewAdamW creates optimizer with default betas (0.9, 0.999) and eps 1e-8
*/
func NewAdamW(weightDecay float64) *AdamW {
	return &AdamW{
		Beta1:       0.9,
		Beta2:       0.999,
		Eps:         1e-8,
		WeightDecay: weightDecay,
		m:           map[*Param][]float64{},
		v:           map[*Param][]float64{},
	}
}

func (o *AdamW) Steps() int {
	return o.step
}

/*
Step updates parameters with their gradients using learning rate lr
*/
func (o *AdamW) Step(lr float64, ps ...*Param) {
	o.step++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.step))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.step))
	for _, p := range ps {
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, len(p.Value))
			o.m[p] = m
			o.v[p] = make([]float64, len(p.Value))
		}
		v := o.v[p]
		if p.Decay && o.WeightDecay != 0 {
			k := 1 - lr*o.WeightDecay
			for i := range p.Value {
				p.Value[i] *= k
			}
		}
		for i, g := range p.Grad {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
			p.Value[i] -= lr * (m[i] / bc1) / (math.Sqrt(v[i]/bc2) + o.Eps)
		}
	}
}
