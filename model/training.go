package model

import (
	"fmt"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
)

/*
Logger is a backend storing training history
*/
type Logger interface {
	LogStep(iteration, step int, loss, lr float64) error
	LogEpoch(Epoch) error
}

/*
Training is the default implementation of unified training interface.
One workout is one epoch, the model is evaluated at the end of every epoch.
*/
type Training struct {
	Iterations int          // count of epochs
	Metrics    Metrics      // evaluating metrics
	Score      Score        // score function to select the best epoch, test accuracy by default
	Log        Logger       // optional training history backend
	Verbose    func(string) // print function
}

type training struct {
	Training
	done bool
}

type workout struct {
	iteration int
	training  *training
	history   []Epoch
	scorlog   []float64
}

func (t Training) Workout() Workout {
	x := &training{Training: t}
	if x.Metrics == nil {
		x.Metrics = Classification{}
	}
	if x.Score == nil {
		x.Score = AccuracyScore
	}
	return &workout{iteration: 0, training: x}
}

func (w *workout) Iteration() int {
	return w.iteration
}

func (w *workout) TrainMetrics() MetricsUpdater {
	return w.training.Metrics.New(w.iteration, TrainSubset)
}

func (w *workout) TestMetrics() MetricsUpdater {
	return w.training.Metrics.New(w.iteration, TestSubset)
}

func (w *workout) LogStep(step int, loss, lr float64) {
	w.Verbose(fmt.Sprintf("[%3d] step %d, loss: %.5f, learning rate: %.3e", w.iteration, step, loss, lr))
	if w.training.Log != nil {
		if err := w.training.Log.LogStep(w.iteration, step, loss, lr); err != nil {
			zlog.Warningf("failed to log training step: %v", err)
		}
	}
}

func (w *workout) report(steps int) *Report {
	report := &Report{History: w.history, Steps: steps}
	if len(w.history) > 0 {
		j := fu.Indmaxd(w.scorlog)
		report.TheBest = j
		report.Train = w.history[j].Train
		report.Test = w.history[j].Test
		report.Score = w.scorlog[j]
	}
	return report
}

func (w *workout) Complete(step int, train, test Outcome) (report *Report, done bool, err error) {
	if w.training.done {
		return nil, true, zorros.New("training is already done")
	}
	maxiter := fu.Maxi(w.training.Iterations, 1)
	e := Epoch{Iteration: w.iteration, Step: step, Train: train, Test: test}
	score := w.training.Score(train, test)
	w.history = append(w.history, e)
	w.scorlog = append(w.scorlog, score)
	if w.training.Log != nil {
		if err = w.training.Log.LogEpoch(e); err != nil {
			return
		}
	}
	w.Verbose(fmt.Sprintf(
		"[%3d] loss: %.5f/%.5f, accuracy: %.5f/%.5f, f1: %.5f, score: %.5f",
		w.iteration, train.Loss, test.Loss, train.Scores[Accuracy], test.Scores[Accuracy], test.Scores[F1], score))
	if w.iteration >= maxiter-1 {
		w.training.done = true
		done = true
		report = w.report(step)
	}
	return
}

func (w *workout) Verbose(s string) {
	if w.training.Verbose != nil {
		w.training.Verbose(s)
	}
}

func (w *workout) Next() Workout {
	if w.training.done {
		zlog.Warning("training is already done")
		return nil
	}
	return &workout{
		iteration: w.iteration + 1,
		training:  w.training,
		history:   w.history,
		scorlog:   w.scorlog,
	}
}
