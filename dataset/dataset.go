/*
Package dataset loads labeled text datasets and prepares them for training.

A dataset is loaded once from a header-less two-column CSV file and is then
transformed in place: tokenized by Map, the label column renamed by RenameColumn
and the model input columns selected by SetFormat.
*/
package dataset

import (
	"encoding/csv"
	"github.com/gocarina/gocsv"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/seqclass/tokenizer"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/exp/rand"
	"golang.org/x/xerrors"
	"path/filepath"
)

// Column names
const (
	TextColumn    = "Review Text"
	LabelColumn   = "Sentiment"
	LabelsColumn  = "labels"
	InputIds      = "input_ids"
	AttentionMask = "attention_mask"
)

// ColumnNames are names given to the CSV columns in the file order
var ColumnNames = []string{TextColumn, LabelColumn}

// DefaultMapBatch is the count of rows passed to a Mapper at once
const DefaultMapBatch = 1000

var (
	ErrNotTokenized = xerrors.New("dataset is not tokenized")
	ErrNotFormatted = xerrors.New("dataset is not formatted")
)

/*
Record is a dataset row
*/
type Record struct {
	Text      string `csv:"Review Text"`
	Sentiment int    `csv:"Sentiment"`
}

/*
Mapper converts a batch of texts to the model input
*/
type Mapper func(texts []string) (*tokenizer.Encoding, error)

/*
Dataset is an ordered set of labeled texts
*/
type Dataset struct {
	Name   string
	texts  []string
	labels []int

	inputIds      [][]int
	attentionMask [][]int
	padId         int
	tokenized     bool

	label  string
	format []string
}

/*
Load reads the header-less CSV file with exactly two columns: text and binary label
*/
func Load(path string) (*Dataset, error) {
	rd, err := iokit.File(path).Open()
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to open dataset %v: %v", path, err.Error())
	}
	defer rd.Close()
	r := csv.NewReader(rd)
	r.FieldsPerRecord = len(ColumnNames)
	var rs []Record
	if err = gocsv.UnmarshalCSVWithoutHeaders(r, &rs); err != nil {
		return nil, zorros.Wrapf(err, "failed to read dataset %v: %v", path, err.Error())
	}
	return FromRecords(filepath.Base(path), rs)
}

/*
FromRecords creates dataset from records, labels must be 0 or 1
*/
func FromRecords(name string, rs []Record) (*Dataset, error) {
	ds := &Dataset{
		Name:   name,
		texts:  make([]string, len(rs)),
		labels: make([]int, len(rs)),
		label:  LabelColumn,
	}
	for i, r := range rs {
		if r.Sentiment != 0 && r.Sentiment != 1 {
			return nil, zorros.Errorf("%v: row %d has non-binary label %d", name, i+1, r.Sentiment)
		}
		ds.texts[i] = r.Text
		ds.labels[i] = r.Sentiment
	}
	return ds, nil
}

func (ds *Dataset) Len() int {
	return len(ds.texts)
}

func (ds *Dataset) Text(i int) string {
	return ds.texts[i]
}

func (ds *Dataset) Label(i int) int {
	return ds.labels[i]
}

// Labels returns a copy of labels
func (ds *Dataset) Labels() []int {
	return append([]int(nil), ds.labels...)
}

func (ds *Dataset) Tokenized() bool {
	return ds.tokenized
}

/*
Columns lists the dataset columns
*/
func (ds *Dataset) Columns() []string {
	cs := []string{TextColumn, ds.label}
	if ds.tokenized {
		cs = append(cs, InputIds, AttentionMask)
	}
	return cs
}

func (ds *Dataset) hasColumn(c string) bool {
	for _, x := range ds.Columns() {
		if x == c {
			return true
		}
	}
	return false
}

/*
Map tokenizes texts batch by batch, batchSize <= 0 means DefaultMapBatch
*/
func (ds *Dataset) Map(fn Mapper, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultMapBatch
	}
	ids := make([][]int, 0, len(ds.texts))
	mask := make([][]int, 0, len(ds.texts))
	padId := 0
	for i := 0; i < len(ds.texts); i += batchSize {
		j := fu.Mini(i+batchSize, len(ds.texts))
		e, err := fn(ds.texts[i:j])
		if err != nil {
			return zorros.Wrapf(err, "failed to map %v rows %d..%d: %v", ds.Name, i, j, err.Error())
		}
		if len(e.InputIds) != j-i || len(e.AttentionMask) != j-i {
			return zorros.Errorf("mapper returned %d rows for %d texts", len(e.InputIds), j-i)
		}
		for k := range e.InputIds {
			if len(e.InputIds[k]) != e.Len() || len(e.AttentionMask[k]) != e.Len() {
				return zorros.Errorf("mapper returned unpadded batch for %v rows %d..%d", ds.Name, i, j)
			}
		}
		ids = append(ids, e.InputIds...)
		mask = append(mask, e.AttentionMask...)
		padId = e.PadId
	}
	ds.inputIds, ds.attentionMask, ds.padId = ids, mask, padId
	ds.tokenized = true
	return nil
}

/*
RenameColumn renames the label column, the dataset must be tokenized
*/
func (ds *Dataset) RenameColumn(from, to string) error {
	if !ds.tokenized {
		return xerrors.Errorf("%v: rename %v: %w", ds.Name, from, ErrNotTokenized)
	}
	if from != ds.label {
		return zorros.Errorf("%v: column `%v` can't be renamed", ds.Name, from)
	}
	if to == "" || (to != from && ds.hasColumn(to)) {
		return zorros.Errorf("%v: bad column name `%v`", ds.Name, to)
	}
	ds.label = to
	return nil
}

/*
SetFormat selects columns the model consumes, the dataset must be tokenized
*/
func (ds *Dataset) SetFormat(columns ...string) error {
	if !ds.tokenized {
		return xerrors.Errorf("%v: set format: %w", ds.Name, ErrNotTokenized)
	}
	for _, c := range columns {
		if c == TextColumn || !ds.hasColumn(c) {
			return zorros.Errorf("%v: column `%v` can't be formatted", ds.Name, c)
		}
	}
	ds.format = append([]string(nil), columns...)
	return nil
}

/*
Formatted reports the dataset provides all the columns
*/
func (ds *Dataset) Formatted(columns ...string) bool {
	if !ds.tokenized {
		return false
	}
	for _, c := range columns {
		found := false
		for _, f := range ds.format {
			if f == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

/*
Batch is a model-ready mini-batch
*/
type Batch struct {
	InputIds      [][]int
	AttentionMask [][]int
	Labels        []int
}

func (b Batch) Len() int {
	return len(b.Labels)
}

/*
Batches splits dataset into mini-batches. Rows are shuffled if rng is not nil.
Every batch is padded to its longest sequence.
*/
func (ds *Dataset) Batches(size int, rng *rand.Rand) ([]Batch, error) {
	if !ds.Formatted(InputIds, AttentionMask, LabelsColumn) {
		return nil, xerrors.Errorf("%v: %v, %v and %v are required: %w",
			ds.Name, InputIds, AttentionMask, LabelsColumn, ErrNotFormatted)
	}
	if size <= 0 {
		return nil, zorros.Errorf("bad batch size %d", size)
	}
	n := ds.Len()
	order := make([]int, n)
	if rng != nil {
		order = rng.Perm(n)
	} else {
		for i := range order {
			order[i] = i
		}
	}
	batches := make([]Batch, 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		j := fu.Mini(i+size, n)
		batches = append(batches, ds.collate(order[i:j]))
	}
	return batches, nil
}

func (ds *Dataset) collate(rows []int) Batch {
	width := 0
	for _, r := range rows {
		if l := seqLen(ds.attentionMask[r]); l > width {
			width = l
		}
	}
	b := Batch{
		InputIds:      make([][]int, len(rows)),
		AttentionMask: make([][]int, len(rows)),
		Labels:        make([]int, len(rows)),
	}
	for k, r := range rows {
		ids := make([]int, width)
		mask := make([]int, width)
		for j := 0; j < width; j++ {
			if j < len(ds.inputIds[r]) {
				ids[j], mask[j] = ds.inputIds[r][j], ds.attentionMask[r][j]
			} else {
				ids[j] = ds.padId
			}
		}
		b.InputIds[k], b.AttentionMask[k], b.Labels[k] = ids, mask, ds.labels[r]
	}
	return b
}

// seqLen is the length of sequence without trailing padding
func seqLen(mask []int) int {
	for j := len(mask); j > 0; j-- {
		if mask[j-1] != 0 {
			return j
		}
	}
	return 0
}
