package model

import (
	"gotest.tools/v3/assert"
	"math"
	"testing"
)

func Test_BinaryMetrics(t *testing.T) {
	s := BinaryMetrics([]int{1, 0, 1, 1}, []int{1, 0, 0, 1})
	assert.DeepEqual(t, s.Names(), ClassificationMetrics)
	assert.Equal(t, s[Accuracy], 0.75)
	assert.Equal(t, s[Precision], 2.0/3)
	assert.Equal(t, s[Recall], 1.0)
	assert.Equal(t, s[F1], 0.8)
}

func Test_BinaryMetricsZeroDivision(t *testing.T) {
	s := BinaryMetrics([]int{0, 0}, []int{0, 0})
	assert.Equal(t, len(s), 4)
	assert.Equal(t, s[Accuracy], 1.0)
	assert.Equal(t, s[Precision], 0.0)
	assert.Equal(t, s[Recall], 0.0)
	assert.Equal(t, s[F1], 0.0)

	s = BinaryMetrics(nil, nil)
	for _, n := range ClassificationMetrics {
		assert.Equal(t, s[n], 0.0)
	}
}

func Test_MetricsRange(t *testing.T) {
	p := []int{1, 1, 0, 0, 1, 0, 1}
	y := []int{0, 1, 1, 0, 1, 0, 0}
	for _, v := range BinaryMetrics(p, y) {
		assert.Assert(t, !math.IsNaN(v) && v >= 0 && v <= 1)
	}
}

func Test_ClassificationUpdater(t *testing.T) {
	u := Classification{}.New(0, TestSubset)
	u.Update([]int{1, 0}, []int{1, 1}, 0.5)
	u.Update([]int{0}, []int{0}, 2)
	o := u.Complete()
	assert.Equal(t, o.Samples, 3)
	assert.Equal(t, o.Loss, 1.0)
	assert.Equal(t, o.Scores[Accuracy], 2.0/3)
	assert.Equal(t, o.Scores[Recall], 0.5)
	assert.Equal(t, o.Scores[Precision], 1.0)
}
