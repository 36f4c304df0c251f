package model

// Subsets metrics are collected for
const (
	TrainSubset = "train"
	TestSubset  = "test"
)

// Binary classification metrics
const (
	Accuracy  = "accuracy"
	F1        = "f1"
	Precision = "precision"
	Recall    = "recall"
)

// ClassificationMetrics are the names of BinaryMetrics in alphabetical order
var ClassificationMetrics = []string{Accuracy, F1, Precision, Recall}

/*
Metrics creates metrics updaters for training iterations
*/
type Metrics interface {
	New(iteration int, subset string) MetricsUpdater
	Names() []string
}

/*
MetricsUpdater accumulates predictions of one subset
*/
type MetricsUpdater interface {
	// Update adds predicted and true labels of a batch with the batch mean loss
	Update(predicted, labels []int, loss float64)
	Complete() Outcome
}

/*
Classification is the binary classification metrics, label 1 is positive
*/
type Classification struct{}

func (Classification) New(iteration int, subset string) MetricsUpdater {
	return &classification{Iteration: iteration, Subset: subset}
}

func (Classification) Names() []string {
	return ClassificationMetrics
}

type classification struct {
	Iteration      int
	Subset         string
	predicted, ytr []int
	loss           float64
}

func (c *classification) Update(predicted, labels []int, loss float64) {
	c.predicted = append(c.predicted, predicted...)
	c.ytr = append(c.ytr, labels...)
	c.loss += loss * float64(len(labels))
}

func (c *classification) Complete() Outcome {
	o := Outcome{Scores: BinaryMetrics(c.predicted, c.ytr), Samples: len(c.ytr)}
	if len(c.ytr) > 0 {
		o.Loss = c.loss / float64(len(c.ytr))
	}
	return o
}

/*
BinaryMetrics calculates accuracy, precision, recall and f1 for positive label 1.
Zero division results in 0.
*/
func BinaryMetrics(predicted, labels []int) Scores {
	var tp, fp, fn, correct float64
	for i, y := range labels {
		p := predicted[i]
		if p == y {
			correct++
		}
		switch {
		case p == 1 && y == 1:
			tp++
		case p == 1:
			fp++
		case y == 1:
			fn++
		}
	}
	return Scores{
		Accuracy:  ratio(correct, float64(len(labels))),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
		F1:        ratio(2*tp, 2*tp+fp+fn),
	}
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

/*
Score is a function calculating the iteration score to select the best iteration
*/
type Score func(train, test Outcome) float64

/*
AccuracyScore scores iterations by the test accuracy
*/
func AccuracyScore(train, test Outcome) float64 {
	return test.Scores[Accuracy]
}
