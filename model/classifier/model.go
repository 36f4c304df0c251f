package classifier

import (
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"io"
	"math"
	"os"
	"path/filepath"
)

/*
Model is the sequence classifier
*/
type Model struct {
	Config      Config
	Embeddings  *mat.Dense    // vocab_size x hidden_size
	PoolerW     *mat.Dense    // hidden_size x hidden_size
	PoolerB     *mat.VecDense // hidden_size
	ClassifierW *mat.Dense    // hidden_size x num_labels
	ClassifierB *mat.VecDense // num_labels
}

/*
New creates randomly initialized model
*/
func New(cfg Config, seed int64) (*Model, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	src := rand.NewSource(uint64(seed))
	h := cfg.HiddenSize
	m := &Model{
		Config:     cfg,
		Embeddings: normal(cfg.VocabSize, h, cfg.InitializerRange, src),
		PoolerW:    normal(h, h, cfg.InitializerRange, src),
		PoolerB:    mat.NewVecDense(h, nil),
	}
	m.initHead(src)
	return m, nil
}

func normal(r, c int, sigma float64, src rand.Source) *mat.Dense {
	n := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	data := make([]float64, r*c)
	for i := range data {
		data[i] = n.Rand()
	}
	return mat.NewDense(r, c, data)
}

func (m *Model) initHead(src rand.Source) {
	m.ClassifierW = normal(m.Config.HiddenSize, m.Config.NumLabels, m.Config.InitializerRange, src)
	m.ClassifierB = mat.NewVecDense(m.Config.NumLabels, nil)
}

/*
FromPretrained loads model from the pretrained directory.
The classification head is initialized randomly with the seed if the directory does not contain it.
*/
func FromPretrained(dir string, seed int64) (*Model, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		return nil, err
	}
	m := &Model{Config: cfg}
	h := cfg.HiddenSize
	if err = readWeights(dir, EmbeddingsFile, weights{&m.Embeddings, cfg.VocabSize, h}); err != nil {
		return nil, err
	}
	if err = readWeights(dir, PoolerFile, weights{&m.PoolerW, h, h}, bias{&m.PoolerB, h}); err != nil {
		return nil, err
	}
	if _, err = os.Stat(filepath.Join(dir, ClassifierFile)); os.IsNotExist(err) {
		zlog.Warningf("some weights of the model were not initialized from %v: [classifier.weight classifier.bias], they are newly initialized", dir)
		m.initHead(rand.NewSource(uint64(seed)))
		return m, nil
	}
	if err = readWeights(dir, ClassifierFile, weights{&m.ClassifierW, h, cfg.NumLabels}, bias{&m.ClassifierB, cfg.NumLabels}); err != nil {
		return nil, err
	}
	return m, nil
}

type unmarshaler interface {
	read(io.Reader) error
}

type weights struct {
	m    **mat.Dense
	r, c int
}

func (w weights) read(rd io.Reader) error {
	x := &mat.Dense{}
	if _, err := x.UnmarshalBinaryFrom(rd); err != nil {
		return err
	}
	if r, c := x.Dims(); r != w.r || c != w.c {
		return zorros.Errorf("matrix %dx%d is expected, got %dx%d", w.r, w.c, r, c)
	}
	*w.m = x
	return nil
}

type bias struct {
	v **mat.VecDense
	n int
}

func (b bias) read(rd io.Reader) error {
	x := &mat.VecDense{}
	if _, err := x.UnmarshalBinaryFrom(rd); err != nil {
		return err
	}
	if x.Len() != b.n {
		return zorros.Errorf("vector of %d is expected, got %d", b.n, x.Len())
	}
	*b.v = x
	return nil
}

func readWeights(dir, name string, parts ...unmarshaler) error {
	rd, err := model.Memorized(dir, name)
	if err != nil {
		return err
	}
	defer rd.Close()
	for _, p := range parts {
		if err = p.read(rd); err != nil {
			return zorros.Wrapf(err, "bad weights file %v: %v", filepath.Join(dir, name), err.Error())
		}
	}
	return nil
}

func writeWeights(parts ...mat.Matrix) model.MemorizeFunc {
	return func(w io.Writer) error {
		for _, p := range parts {
			var err error
			switch x := p.(type) {
			case *mat.Dense:
				_, err = x.MarshalBinaryTo(w)
			case *mat.VecDense:
				_, err = x.MarshalBinaryTo(w)
			default:
				err = zorros.Errorf("unsupported matrix type %T", p)
			}
			if err != nil {
				return zorros.Trace(err)
			}
		}
		return nil
	}
}

/*
Memorize returns the model files, the classification head is included if withHead is true
*/
func (m *Model) Memorize(withHead bool) model.MemorizeMap {
	mm := model.MemorizeMap{
		ConfigFile:     m.Config,
		EmbeddingsFile: writeWeights(m.Embeddings),
		PoolerFile:     writeWeights(m.PoolerW, m.PoolerB),
	}
	if withHead {
		mm[ClassifierFile] = writeWeights(m.ClassifierW, m.ClassifierB)
	}
	return mm
}

/*
Activations are the intermediate results of a forward pass
*/
type Activations struct {
	counts []float64
	pooled *mat.Dense
	hidden *mat.Dense
	logits *mat.Dense
}

/*
Predictions returns argmax of logits for every sequence
*/
func (a *Activations) Predictions() []int {
	r, _ := a.logits.Dims()
	p := make([]int, r)
	for i := range p {
		p[i] = fu.Indmaxd(a.logits.RawRowView(i))
	}
	return p
}

/*
Loss returns the mean cross-entropy loss
*/
func (a *Activations) Loss(labels []int) float64 {
	r, c := a.logits.Dims()
	if r == 0 {
		return 0
	}
	p := make([]float64, c)
	var loss float64
	for i := 0; i < r; i++ {
		fu.Softmax(p, a.logits.RawRowView(i))
		loss -= math.Log(math.Max(p[labels[i]], 1e-12))
	}
	return loss / float64(r)
}

/*
Forward calculates logits of the batch
*/
func (m *Model) Forward(ids, mask [][]int) (*Activations, error) {
	n := len(ids)
	h := m.Config.HiddenSize
	if n == 0 || len(mask) != n {
		return nil, zorros.Errorf("bad batch of %d sequences with %d masks", n, len(mask))
	}
	a := &Activations{counts: make([]float64, n), pooled: mat.NewDense(n, h, nil)}
	for b, seq := range ids {
		row := a.pooled.RawRowView(b)
		for t, id := range seq {
			if mask[b][t] == 0 {
				continue
			}
			if id < 0 || id >= m.Config.VocabSize {
				return nil, zorros.Errorf("token id %d is out of vocabulary of %d", id, m.Config.VocabSize)
			}
			floats.Add(row, m.Embeddings.RawRowView(id))
			a.counts[b]++
		}
		if a.counts[b] > 0 {
			floats.Scale(1/a.counts[b], row)
		}
	}
	a.hidden = &mat.Dense{}
	a.hidden.Mul(a.pooled, m.PoolerW)
	addBias(a.hidden, m.PoolerB)
	a.hidden.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, a.hidden)
	a.logits = &mat.Dense{}
	a.logits.Mul(a.hidden, m.ClassifierW)
	addBias(a.logits, m.ClassifierB)
	return a, nil
}

func addBias(d *mat.Dense, b *mat.VecDense) {
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		for j := range row {
			row[j] += b.AtVec(j)
		}
	}
}

func sumRows(dst []float64, d *mat.Dense) {
	r, _ := d.Dims()
	for i := 0; i < r; i++ {
		floats.Add(dst, d.RawRowView(i))
	}
}

/*
Backward accumulates gradients of the mean cross-entropy loss into params and returns the loss
*/
func (m *Model) Backward(a *Activations, ids, mask [][]int, labels []int, ps *Params) float64 {
	n, l := a.logits.Dims()
	h := m.Config.HiddenSize
	dlogits := mat.NewDense(n, l, nil)
	var loss float64
	for i := 0; i < n; i++ {
		p := fu.Softmax(dlogits.RawRowView(i), a.logits.RawRowView(i))
		loss -= math.Log(math.Max(p[labels[i]], 1e-12))
		p[labels[i]] -= 1
		floats.Scale(1/float64(n), p)
	}

	g := &mat.Dense{}
	g.Mul(a.hidden.T(), dlogits)
	floats.Add(ps.ClassifierW.Grad, g.RawMatrix().Data)
	sumRows(ps.ClassifierB.Grad, dlogits)

	dz := &mat.Dense{}
	dz.Mul(dlogits, m.ClassifierW.T())
	dz.Apply(func(i, j int, v float64) float64 {
		x := a.hidden.At(i, j)
		return v * (1 - x*x)
	}, dz)

	g = &mat.Dense{}
	g.Mul(a.pooled.T(), dz)
	floats.Add(ps.PoolerW.Grad, g.RawMatrix().Data)
	sumRows(ps.PoolerB.Grad, dz)

	dp := &mat.Dense{}
	dp.Mul(dz, m.PoolerW.T())
	for b, seq := range ids {
		if a.counts[b] == 0 {
			continue
		}
		row := dp.RawRowView(b)
		s := 1 / a.counts[b]
		for t, id := range seq {
			if mask[b][t] != 0 {
				floats.AddScaled(ps.Embeddings.Grad[id*h:(id+1)*h], s, row)
			}
		}
	}
	return loss / float64(n)
}
