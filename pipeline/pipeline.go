/*
Package pipeline runs the fine-tuning job stages: load, tokenize, train, evaluate and persist
*/
package pipeline

import (
	"fmt"
	"go-ml.dev/pkg/seqclass/config"
	"go-ml.dev/pkg/seqclass/dataset"
	"go-ml.dev/pkg/seqclass/history"
	"go-ml.dev/pkg/seqclass/hub"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/seqclass/model/classifier"
	"go-ml.dev/pkg/seqclass/tokenizer"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/xerrors"
	"io"
	"path/filepath"
)

/*
Stage is the pipeline state, stages run strictly in order
*/
type Stage int

const (
	Load Stage = iota
	Tokenize
	Train
	Evaluate
	Persist
	Done
)

var stageNames = []string{"load", "tokenize", "train", "evaluate", "persist", "done"}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ErrStage is returned when a stage is executed out of order
var ErrStage = xerrors.New("stage is out of order")

/*
Tokenizer converts texts into padded token ids and provides its files saved with the model
*/
type Tokenizer interface {
	Batch(texts []string) (*tokenizer.Encoding, error)
	Files() map[string]func(io.Writer) error
}

/*
Trainer fine-tunes the pretrained model
*/
type Trainer interface {
	model.HungryModel
	Evaluate(*dataset.Dataset) (model.Scores, float64, error)
	SaveModel(dir string) error
}

/*
Pipeline is the training job
*/
type Pipeline struct {
	Config config.Config

	// Resolve returns the local directory of the pretrained model
	Resolve func(name string) (string, error)
	// LoadTokenizer loads tokenizer from the pretrained directory
	LoadTokenizer func(dir string, maxLength int) (Tokenizer, error)
	// LoadTrainer loads model from the pretrained directory
	LoadTrainer func(dir string, tok Tokenizer, args classifier.Args) (Trainer, error)

	stage      Stage
	pretrained string
	train      *dataset.Dataset
	test       *dataset.Dataset
	tok        Tokenizer
	trainer    Trainer
	report     *model.Report
	scores     model.Scores
}

// RequiredFiles are the files of a pretrained model directory
var RequiredFiles = []string{classifier.ConfigFile, tokenizer.VocabFile, classifier.EmbeddingsFile, classifier.PoolerFile}

// OptionalFiles are downloaded with the pretrained model if exist
var OptionalFiles = []string{tokenizer.ConfigFile, tokenizer.SpecialTokensFile, classifier.ClassifierFile}

/*
New creates pipeline with the default pretrained models hub and embedding-bag classifier
*/
func New(cfg config.Config) *Pipeline {
	return &Pipeline{
		Config:        cfg,
		Resolve:       hub.Default(RequiredFiles, OptionalFiles).Resolve,
		LoadTokenizer: loadTokenizer,
		LoadTrainer:   loadTrainer,
	}
}

func loadTokenizer(dir string, maxLength int) (Tokenizer, error) {
	tok, err := tokenizer.FromPretrained(dir)
	if err != nil {
		return nil, err
	}
	return tok.WithMaxLength(maxLength), nil
}

func loadTrainer(dir string, tok Tokenizer, args classifier.Args) (Trainer, error) {
	m, err := classifier.FromPretrained(dir, args.Seed)
	if err != nil {
		return nil, err
	}
	return classifier.NewTrainer(m, tok, args), nil
}

func (p *Pipeline) Stage() Stage {
	return p.stage
}

/*
Scores returns the final evaluation metrics
*/
func (p *Pipeline) Scores() model.Scores {
	return p.scores
}

/*
Report returns the training report
*/
func (p *Pipeline) Report() *model.Report {
	return p.report
}

func (p *Pipeline) Datasets() (train, test *dataset.Dataset) {
	return p.train, p.test
}

/*
Run executes all remaining stages
*/
func (p *Pipeline) Run() error {
	for p.stage != Done {
		if err := p.Next(); err != nil {
			return err
		}
	}
	return nil
}

/*
Next executes the current stage
*/
func (p *Pipeline) Next() error {
	switch p.stage {
	case Load:
		return p.Load()
	case Tokenize:
		return p.Tokenize()
	case Train:
		return p.Train()
	case Evaluate:
		return p.Evaluate()
	case Persist:
		return p.Persist()
	}
	return xerrors.Errorf("%v: %w", p.stage, ErrStage)
}

func (p *Pipeline) do(s Stage, f func() error) error {
	if p.stage != s {
		return xerrors.Errorf("%v is requested when the pipeline is at %v: %w", s, p.stage, ErrStage)
	}
	if err := f(); err != nil {
		return err
	}
	p.stage++
	return nil
}

/*
Load reads the training and test datasets
*/
func (p *Pipeline) Load() error {
	return p.do(Load, func() (err error) {
		if p.train, err = dataset.Load(p.Config.TrainPath()); err != nil {
			return
		}
		if p.test, err = dataset.Load(p.Config.TestPath()); err != nil {
			return
		}
		zlog.Infof("loaded train_dataset length is: %d", p.train.Len())
		zlog.Infof("loaded test_dataset length is: %d", p.test.Len())
		return
	})
}

/*
Tokenize encodes both datasets with the pretrained tokenizer
and formats them as input_ids, attention_mask and labels
*/
func (p *Pipeline) Tokenize() error {
	return p.do(Tokenize, func() (err error) {
		if p.pretrained, err = p.Resolve(p.Config.ModelName); err != nil {
			return
		}
		if p.tok, err = p.LoadTokenizer(p.pretrained, p.Config.MaxLength); err != nil {
			return
		}
		for _, ds := range []*dataset.Dataset{p.train, p.test} {
			if err = ds.Map(p.tok.Batch, dataset.DefaultMapBatch); err != nil {
				return
			}
			if err = ds.RenameColumn(dataset.LabelColumn, dataset.LabelsColumn); err != nil {
				return
			}
			if err = ds.SetFormat(dataset.InputIds, dataset.AttentionMask, dataset.LabelsColumn); err != nil {
				return
			}
		}
		return
	})
}

func (p *Pipeline) args() (classifier.Args, error) {
	lr, err := p.Config.LR()
	if err != nil {
		return classifier.Args{}, err
	}
	return classifier.Args{
		Epochs:         p.Config.Epochs,
		TrainBatchSize: p.Config.TrainBatchSize,
		EvalBatchSize:  p.Config.EvalBatchSize,
		WarmupSteps:    p.Config.WarmupSteps,
		LearningRate:   lr,
		WeightDecay:    p.Config.WeightDecay,
		Seed:           p.Config.Seed,
		LoggingSteps:   p.Config.LoggingSteps,
	}, nil
}

/*
Train fine-tunes the pretrained model evaluating it after every epoch,
the training history is written into the logging directory
*/
func (p *Pipeline) Train() error {
	return p.do(Train, func() (err error) {
		args, err := p.args()
		if err != nil {
			return
		}
		if p.trainer, err = p.LoadTrainer(p.pretrained, p.tok, args); err != nil {
			return
		}
		store, err := history.Open(filepath.Join(p.Config.LoggingDir(), history.File))
		if err != nil {
			return
		}
		defer store.Close()
		if err = store.Reset(); err != nil {
			return
		}
		if err = store.Params(p.Config.Params()); err != nil {
			return
		}
		ds := model.Dataset{
			Source:     p.train,
			Validation: p.test,
			Label:      dataset.LabelsColumn,
			Features:   []string{dataset.InputIds, dataset.AttentionMask},
		}
		p.report, err = p.trainer.Feed(ds).Train(model.Training{
			Iterations: p.Config.Epochs,
			Log:        store,
			Verbose:    func(s string) { zlog.Info(s) },
		})
		if err != nil {
			return zorros.Wrapf(err, "training failed: %v", err.Error())
		}
		return
	})
}

/*
Evaluate calculates the final metrics on the test dataset
*/
func (p *Pipeline) Evaluate() error {
	return p.do(Evaluate, func() (err error) {
		var loss float64
		if p.scores, loss, err = p.trainer.Evaluate(p.test); err != nil {
			return
		}
		zlog.Infof("eval loss: %.5f", loss)
		return
	})
}

/*
Persist writes the evaluation results and the trained model
*/
func (p *Pipeline) Persist() error {
	return p.do(Persist, func() (err error) {
		if err = WriteResults(p.Config.ResultsPath(), p.scores); err != nil {
			return
		}
		return p.trainer.SaveModel(p.Config.ModelDir)
	})
}
