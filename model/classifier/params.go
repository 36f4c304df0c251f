package classifier

import (
	"gonum.org/v1/gonum/mat"
)

/*
Param is a trainable tensor with its gradient
*/
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
	Decay bool // weight decay is applied
}

func param(name string, value []float64, decay bool) *Param {
	return &Param{Name: name, Value: value, Grad: make([]float64, len(value)), Decay: decay}
}

func dense(m *mat.Dense) []float64 {
	return m.RawMatrix().Data
}

func vector(v *mat.VecDense) []float64 {
	return v.RawVector().Data
}

/*
Params are the trainable parameters of the model sharing memory with model matrices
*/
type Params struct {
	Embeddings  *Param
	PoolerW     *Param
	PoolerB     *Param
	ClassifierW *Param
	ClassifierB *Param
}

func (m *Model) Params() *Params {
	return &Params{
		Embeddings:  param("embeddings.weight", dense(m.Embeddings), true),
		PoolerW:     param("pooler.dense.weight", dense(m.PoolerW), true),
		PoolerB:     param("pooler.dense.bias", vector(m.PoolerB), false),
		ClassifierW: param("classifier.weight", dense(m.ClassifierW), true),
		ClassifierB: param("classifier.bias", vector(m.ClassifierB), false),
	}
}

func (ps *Params) All() []*Param {
	return []*Param{ps.Embeddings, ps.PoolerW, ps.PoolerB, ps.ClassifierW, ps.ClassifierB}
}

func (ps *Params) ZeroGrad() {
	for _, p := range ps.All() {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}
