package fu

import (
	"gonum.org/v1/gonum/floats"
	"math"
)

func Mean(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Sum(a) / float64(len(a))
}

/*
Softmax writes normalized exponents of s into dst and returns dst
*/
func Softmax(dst, s []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(s))
	}
	lse := floats.LogSumExp(s)
	for i, x := range s {
		dst[i] = math.Exp(x - lse)
	}
	return dst
}

/*
Indmaxd returns index of the first maximal value
*/
func Indmaxd(a []float64) int {
	j := 0
	for i, x := range a {
		if x > a[j] {
			j = i
		}
	}
	return j
}

func Maxi(a int, b ...int) int {
	for _, x := range b {
		if x > a {
			a = x
		}
	}
	return a
}

func Mini(a int, b ...int) int {
	for _, x := range b {
		if x < a {
			a = x
		}
	}
	return a
}

/*
Fnzi returns the first non-zero value
*/
func Fnzi(a ...int) int {
	for _, x := range a {
		if x != 0 {
			return x
		}
	}
	return 0
}

/*
Fnzd returns the first non-zero value
*/
func Fnzd(a ...float64) float64 {
	for _, x := range a {
		if x != 0 {
			return x
		}
	}
	return 0
}

/*
Fnzs returns the first non-empty string
*/
func Fnzs(a ...string) string {
	for _, x := range a {
		if x != "" {
			return x
		}
	}
	return ""
}
