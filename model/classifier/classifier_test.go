package classifier

import (
	"go-ml.dev/pkg/seqclass/dataset"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/seqclass/tokenizer"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"math"
	"os"
	"path/filepath"
	"testing"
)

var texts = []string{
	"great dress love it", "awful fabric hate it",
	"love the color great fit", "hate the cut awful",
	"great great great", "awful awful",
}

var labels = []int{1, 0, 1, 0, 1, 0}

func newTokenizer(t *testing.T) *tokenizer.Tokenizer {
	cfg := tokenizer.DefaultConfig()
	cfg.ModelMaxLength = 16
	v, err := tokenizer.BuildVocab(texts, 0, true)
	assert.NilError(t, err)
	dir := fs.NewDir(t, "tokenizer")
	defer dir.Remove()
	tok, err := tokenizer.Create(dir.Path(), v, cfg)
	assert.NilError(t, err)
	return tok
}

func newDataset(t *testing.T, tok *tokenizer.Tokenizer) *dataset.Dataset {
	rs := make([]dataset.Record, len(texts))
	for i := range rs {
		rs[i] = dataset.Record{Text: texts[i], Sentiment: labels[i]}
	}
	ds, err := dataset.FromRecords("reviews", rs)
	assert.NilError(t, err)
	assert.NilError(t, ds.Map(tok.Batch, 0))
	assert.NilError(t, ds.RenameColumn(dataset.LabelColumn, dataset.LabelsColumn))
	assert.NilError(t, ds.SetFormat(dataset.InputIds, dataset.AttentionMask, dataset.LabelsColumn))
	return ds
}

func Test_NewModel(t *testing.T) {
	m, err := New(Config{VocabSize: 10, HiddenSize: 4}, 42)
	assert.NilError(t, err)
	r, c := m.Embeddings.Dims()
	assert.Equal(t, r, 10)
	assert.Equal(t, c, 4)
	r, c = m.ClassifierW.Dims()
	assert.Equal(t, r, 4)
	assert.Equal(t, c, 2)
	assert.Equal(t, m.Config.Id2Label["1"], "LABEL_1")
	assert.Equal(t, mat.Sum(m.PoolerB), 0.0)

	x, err := New(Config{VocabSize: 10, HiddenSize: 4}, 42)
	assert.NilError(t, err)
	assert.Assert(t, mat.Equal(m.Embeddings, x.Embeddings))

	_, err = New(Config{VocabSize: 10, HiddenSize: 4, NumLabels: 3}, 42)
	assert.ErrorContains(t, err, "2 labels")
	_, err = New(Config{HiddenSize: 4}, 42)
	assert.ErrorContains(t, err, "vocab_size")
}

func Test_Forward(t *testing.T) {
	m, err := New(Config{VocabSize: 10, HiddenSize: 4}, 1)
	assert.NilError(t, err)
	ids := [][]int{{2, 5, 6, 3}, {2, 7, 3, 0}}
	mask := [][]int{{1, 1, 1, 1}, {1, 1, 1, 0}}
	a, err := m.Forward(ids, mask)
	assert.NilError(t, err)
	r, c := a.logits.Dims()
	assert.Equal(t, r, 2)
	assert.Equal(t, c, 2)
	assert.Equal(t, len(a.Predictions()), 2)
	assert.Assert(t, a.Loss([]int{0, 1}) > 0)

	// padding does not change the result
	b, err := m.Forward([][]int{{2, 7, 3}}, [][]int{{1, 1, 1}})
	assert.NilError(t, err)
	for j, v := range b.logits.RawRowView(0) {
		assert.Assert(t, math.Abs(v-a.logits.At(1, j)) < 1e-12)
	}

	_, err = m.Forward([][]int{{2, 42}}, [][]int{{1, 1}})
	assert.ErrorContains(t, err, "out of vocabulary")
	_, err = m.Forward(nil, nil)
	assert.Assert(t, err != nil)
}

func Test_Gradients(t *testing.T) {
	m, err := New(Config{VocabSize: 8, HiddenSize: 3, InitializerRange: 0.5}, 7)
	assert.NilError(t, err)
	ids := [][]int{{1, 2, 3}, {4, 5, 0}}
	mask := [][]int{{1, 1, 1}, {1, 1, 0}}
	y := []int{1, 0}
	ps := m.Params()
	a, err := m.Forward(ids, mask)
	assert.NilError(t, err)
	loss := m.Backward(a, ids, mask, y, ps)
	assert.Assert(t, math.Abs(loss-a.Loss(y)) < 1e-12)

	const eps = 1e-6
	for _, p := range ps.All() {
		for _, i := range []int{0, len(p.Value) / 2, len(p.Value) - 1} {
			v := p.Value[i]
			p.Value[i] = v + eps
			a1, _ := m.Forward(ids, mask)
			p.Value[i] = v - eps
			a2, _ := m.Forward(ids, mask)
			p.Value[i] = v
			numeric := (a1.Loss(y) - a2.Loss(y)) / (2 * eps)
			assert.Assert(t, math.Abs(numeric-p.Grad[i]) < 1e-5, "%v[%d]: %v != %v", p.Name, i, numeric, p.Grad[i])
		}
	}
}

func Test_Schedule(t *testing.T) {
	s := LinearSchedule{Base: 1, Warmup: 2, Total: 6}
	for step, lr := range []float64{0, 0.5, 1, 0.75, 0.5, 0.25, 0, 0} {
		assert.Equal(t, s.LR(step), lr)
	}
	s = LinearSchedule{Base: 1e-3, Warmup: 500, Total: 1}
	assert.Equal(t, s.LR(0), 0.0)
	assert.Assert(t, math.Abs(s.LR(250)-5e-4) < 1e-12)
	s = LinearSchedule{Base: 2, Total: 4}
	assert.Equal(t, s.LR(0), 2.0)
	assert.Equal(t, s.LR(2), 1.0)
}

func Test_AdamW(t *testing.T) {
	p := param("w", []float64{1, -1}, true)
	p.Grad[0], p.Grad[1] = 0.5, -2
	opt := NewAdamW(0.1)
	opt.Step(0.1, p)
	assert.Equal(t, opt.Steps(), 1)
	// the first Adam step moves every weight by lr in the direction opposite to the gradient
	assert.Assert(t, math.Abs(p.Value[0]-(1*0.99-0.1)) < 1e-6)
	assert.Assert(t, math.Abs(p.Value[1]-(-1*0.99+0.1)) < 1e-6)

	b := param("b", []float64{1}, false)
	NewAdamW(0.1).Step(0.1, b)
	assert.Equal(t, b.Value[0], 1.0)
}

func Test_TrainingReducesLoss(t *testing.T) {
	tok := newTokenizer(t)
	ds := newDataset(t, tok)
	m, err := New(Config{VocabSize: tok.VocabSize(), HiddenSize: 8, InitializerRange: 0.1}, 42)
	assert.NilError(t, err)
	tr := NewTrainer(m, tok, Args{
		Epochs:         30,
		TrainBatchSize: 2,
		EvalBatchSize:  4,
		LearningRate:   0.05,
		Seed:           42,
		LoggingSteps:   10,
	})
	_, before, err := tr.Evaluate(ds)
	assert.NilError(t, err)
	report, err := tr.Feed(model.Dataset{
		Source:   ds,
		Label:    dataset.LabelsColumn,
		Features: []string{dataset.InputIds, dataset.AttentionMask},
	}).Train(model.Training{Iterations: 30})
	assert.NilError(t, err)
	assert.Equal(t, len(report.History), 30)
	assert.Equal(t, report.Steps, 90)
	scores, after, err := tr.Evaluate(nil)
	assert.NilError(t, err)
	assert.Assert(t, after < before, "%v >= %v", after, before)
	assert.Equal(t, scores[model.Accuracy], 1.0)
	assert.DeepEqual(t, scores.Names(), model.ClassificationMetrics)
}

func Test_FeedRequiresFormat(t *testing.T) {
	tok := newTokenizer(t)
	ds, err := dataset.FromRecords("raw", []dataset.Record{{Text: "great", Sentiment: 1}})
	assert.NilError(t, err)
	m, err := New(Config{VocabSize: tok.VocabSize(), HiddenSize: 4}, 42)
	assert.NilError(t, err)
	_, err = NewTrainer(m, tok, Args{Epochs: 1, TrainBatchSize: 1, EvalBatchSize: 1}).
		Feed(model.Dataset{Source: ds, Label: dataset.LabelsColumn}).
		Train(model.Training{})
	assert.ErrorContains(t, err, "not tokenized")
}

func Test_Pretrained(t *testing.T) {
	dir := fs.NewDir(t, "classifier")
	defer dir.Remove()
	tok := newTokenizer(t)
	pre := dir.Join("pretrained")
	m, err := CreatePretrained(pre, tok, Config{HiddenSize: 6}, 1)
	assert.NilError(t, err)
	_, err = os.Stat(filepath.Join(pre, ClassifierFile))
	assert.Assert(t, os.IsNotExist(err))
	for _, f := range []string{ConfigFile, EmbeddingsFile, PoolerFile, tokenizer.VocabFile, tokenizer.ConfigFile} {
		_, err = os.Stat(filepath.Join(pre, f))
		assert.NilError(t, err, f)
	}

	x, err := FromPretrained(pre, 42)
	assert.NilError(t, err)
	assert.Equal(t, x.Config.VocabSize, tok.VocabSize())
	assert.Equal(t, x.Config.MaxPositionEmbeddings, 16)
	assert.Assert(t, mat.Equal(x.Embeddings, m.Embeddings))
	assert.Assert(t, mat.Equal(x.PoolerW, m.PoolerW))
	r, c := x.ClassifierW.Dims()
	assert.Equal(t, r, 6)
	assert.Equal(t, c, 2)

	tr := NewTrainer(x, tok, Args{})
	out := dir.Join("model")
	assert.NilError(t, tr.SaveModel(out))
	y, err := FromPretrained(out, 0)
	assert.NilError(t, err)
	assert.Assert(t, mat.Equal(y.ClassifierW, x.ClassifierW))
	assert.Assert(t, mat.Equal(y.ClassifierB, x.ClassifierB))
	_, err = tokenizer.FromPretrained(out)
	assert.NilError(t, err)

	// a model without the head replaces the fine-tuned one
	_, err = CreatePretrained(out, tok, Config{HiddenSize: 6}, 1)
	assert.NilError(t, err)
	_, err = os.Stat(filepath.Join(out, ClassifierFile))
	assert.Assert(t, os.IsNotExist(err))

	_, err = FromPretrained(dir.Join("absent"), 0)
	assert.Assert(t, err != nil)
}
