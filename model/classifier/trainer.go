package classifier

import (
	"github.com/dustin/go-humanize"
	"go-ml.dev/pkg/seqclass/dataset"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/exp/rand"
	"io"
	"time"
)

/*
Tokenizer provides files of the tokenizer saved together with the model
*/
type Tokenizer interface {
	Files() map[string]func(io.Writer) error
}

/*
Args are the training hyper-parameters
*/
type Args struct {
	Epochs         int
	TrainBatchSize int
	EvalBatchSize  int
	WarmupSteps    int
	LearningRate   float64
	WeightDecay    float64
	Seed           int64
	LoggingSteps   int // 0 disables step logging
}

/*
Trainer fine-tunes the model on a tokenized dataset
*/
type Trainer struct {
	Model     *Model
	Tokenizer Tokenizer
	Args      Args

	eval *dataset.Dataset
}

func NewTrainer(m *Model, tok Tokenizer, args Args) *Trainer {
	return &Trainer{Model: m, Tokenizer: tok, Args: args}
}

/*
Feed binds the training and evaluation datasets
*/
func (t *Trainer) Feed(ds model.Dataset) model.FatModel {
	return func(workout model.Workout) (*model.Report, error) {
		return t.train(ds, workout)
	}
}

func (t *Trainer) train(ds model.Dataset, workout model.Workout) (*model.Report, error) {
	if err := ds.Check(); err != nil {
		return nil, err
	}
	if t.Args.TrainBatchSize <= 0 || t.Args.EvalBatchSize <= 0 {
		return nil, zorros.Errorf("bad batch sizes %d/%d", t.Args.TrainBatchSize, t.Args.EvalBatchSize)
	}
	t.eval = ds.Eval()
	n := ds.Source.Len()
	perEpoch := (n + t.Args.TrainBatchSize - 1) / t.Args.TrainBatchSize
	schedule := LinearSchedule{
		Base:   t.Args.LearningRate,
		Warmup: t.Args.WarmupSteps,
		Total:  t.Args.Epochs * perEpoch,
	}
	opt := NewAdamW(t.Args.WeightDecay)
	ps := t.Model.Params()
	rng := rand.New(rand.NewSource(uint64(t.Args.Seed)))

	zlog.Infof("***** Running training *****")
	zlog.Infof("  num examples = %v, num epochs = %d, batch size = %d, total steps = %d",
		humanize.Comma(int64(n)), t.Args.Epochs, t.Args.TrainBatchSize, schedule.Total)

	for w := workout; w != nil; w = w.Next() {
		started := time.Now()
		batches, err := ds.Source.Batches(t.Args.TrainBatchSize, rng)
		if err != nil {
			return nil, zorros.Trace(err)
		}
		trainu := w.TrainMetrics()
		var losses []float64
		for _, b := range batches {
			ps.ZeroGrad()
			a, err := t.Model.Forward(b.InputIds, b.AttentionMask)
			if err != nil {
				return nil, zorros.Trace(err)
			}
			loss := t.Model.Backward(a, b.InputIds, b.AttentionMask, b.Labels, ps)
			lr := schedule.LR(opt.Steps())
			opt.Step(lr, ps.All()...)
			trainu.Update(a.Predictions(), b.Labels, loss)
			losses = append(losses, loss)
			if t.Args.LoggingSteps > 0 && opt.Steps()%t.Args.LoggingSteps == 0 {
				w.LogStep(opt.Steps(), fu.Mean(losses), lr)
				losses = losses[:0]
			}
		}
		testu := w.TestMetrics()
		if err = t.evaluate(t.eval, testu); err != nil {
			return nil, err
		}
		report, done, err := w.Complete(opt.Steps(), trainu.Complete(), testu.Complete())
		if err != nil {
			return nil, zorros.Trace(err)
		}
		zlog.Infof("epoch %d completed in %v", w.Iteration(), time.Since(started).Truncate(time.Millisecond))
		if done {
			return report, nil
		}
	}
	return nil, zorros.New("training was interrupted")
}

func (t *Trainer) evaluate(ds *dataset.Dataset, u model.MetricsUpdater) error {
	batches, err := ds.Batches(t.Args.EvalBatchSize, nil)
	if err != nil {
		return zorros.Trace(err)
	}
	for _, b := range batches {
		a, err := t.Model.Forward(b.InputIds, b.AttentionMask)
		if err != nil {
			return zorros.Trace(err)
		}
		u.Update(a.Predictions(), b.Labels, a.Loss(b.Labels))
	}
	return nil
}

/*
Evaluate predicts labels of the dataset bound by Feed, or ds if it is not nil,
and returns the binary classification metrics with the mean loss
*/
func (t *Trainer) Evaluate(ds *dataset.Dataset) (model.Scores, float64, error) {
	if ds == nil {
		ds = t.eval
	}
	if ds == nil {
		return nil, 0, zorros.New("evaluation dataset is not specified")
	}
	if t.Args.EvalBatchSize <= 0 {
		return nil, 0, zorros.Errorf("bad batch size %d", t.Args.EvalBatchSize)
	}
	u := model.Classification{}.New(0, model.TestSubset)
	if err := t.evaluate(ds, u); err != nil {
		return nil, 0, err
	}
	o := u.Complete()
	return o.Scores, o.Loss, nil
}

/*
SaveModel writes the model with the classification head and the tokenizer files into the directory
*/
func (t *Trainer) SaveModel(dir string) error {
	mm := t.Model.Memorize(true)
	if t.Tokenizer != nil {
		for name, f := range t.Tokenizer.Files() {
			mm[name] = model.MemorizeFunc(f)
		}
	}
	return model.Memorize(dir, mm, Artifacts...)
}
