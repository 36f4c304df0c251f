package model

import (
	"go-ml.dev/pkg/seqclass/dataset"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/xerrors"
)

/*
Dataset is an abstraction of some source of a data to feed hungry models
*/
type Dataset struct {
	Source     *dataset.Dataset // tokenized and formatted training data
	Validation *dataset.Dataset // optional, equal to Source if nil
	Label      string           // name of the label column
	Features   []string         // columns the model consumes
}

/*
Eval returns the validation dataset
*/
func (d Dataset) Eval() *dataset.Dataset {
	if d.Validation != nil {
		return d.Validation
	}
	return d.Source
}

/*
Check ensures both datasets are formatted with features and label
*/
func (d Dataset) Check() error {
	if d.Source == nil {
		return zorros.New("training dataset is not specified")
	}
	cols := append(append([]string{}, d.Features...), d.Label)
	for _, ds := range []*dataset.Dataset{d.Source, d.Eval()} {
		if !ds.Tokenized() {
			return xerrors.Errorf("%v: %w", ds.Name, dataset.ErrNotTokenized)
		}
		if !ds.Formatted(cols...) {
			return xerrors.Errorf("%v: columns %v: %w", ds.Name, cols, dataset.ErrNotFormatted)
		}
	}
	return nil
}
