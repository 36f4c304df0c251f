package model

import (
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"sort"
)

/*
HungryModel is an ML algorithm grows from a data to predict something
Needs to be fattened by Feed method to fit.
*/
type HungryModel interface {
	Feed(Dataset) FatModel
}

/*
Scores maps metric name to its value
*/
type Scores map[string]float64

/*
Names returns metric names in alphabetical order
*/
func (s Scores) Names() []string {
	r := make([]string, 0, len(s))
	for k := range s {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

/*
Outcome is the metrics of one subset after one training iteration
*/
type Outcome struct {
	Scores  Scores
	Loss    float64
	Samples int
}

/*
Epoch is a training iteration record
*/
type Epoch struct {
	Iteration int     // zero based epoch number
	Step      int     // optimizer steps done when epoch is completed
	Train     Outcome // metrics collected while training
	Test      Outcome // metrics of the evaluation pass
}

/*
Report is an ML training report
*/
type Report struct {
	History []Epoch // all iterations history
	TheBest int     // the best iteration
	Train   Outcome // the best iteration metrics
	Test    Outcome // the best iteration metrics
	Score   float64 // the best score
	Steps   int     // total optimizer steps
}

/*
Workout is a training iteration abstraction
*/
type Workout interface {
	Iteration() int
	TrainMetrics() MetricsUpdater
	TestMetrics() MetricsUpdater
	LogStep(step int, loss, lr float64)
	Complete(step int, train, test Outcome) (*Report, bool, error)
	Next() Workout
	Verbose(string)
}

/*
UnifiedTraining is an interface allowing to write any logging/staging backend for ML training
*/
type UnifiedTraining interface {
	// Workout returns the first iteration workout
	Workout() Workout
}

/*
FatModel is fattened model (a training function of model instance bounded to a dataset)
*/
type FatModel func(workout Workout) (*Report, error)

/*
Train a fattened (Fat) model
*/
func (f FatModel) Train(training UnifiedTraining) (*Report, error) {
	w := training.Workout()
	if c, ok := w.(io.Closer); ok {
		defer c.Close()
	}
	return f(w)
}

/*
LuckyTrain trains fattened (Fat) model and trows any occurred errors as a panic
*/
func (f FatModel) LuckyTrain(training UnifiedTraining) *Report {
	m, err := f.Train(training)
	if err != nil {
		panic(zorros.Panic(err))
	}
	return m
}

/*
Params is a set of hyper-parameters the model was trained with
*/
type Params map[string]float64

/*
Get value of the parameter by name if exists and dflt value otherwise
*/
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}
