/*
Package config resolves invocation parameters and the directories the managed
training environment passes through SM_* environment variables.
*/
package config

import (
	"fmt"
	arg "github.com/alexflint/go-arg"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/xerrors"
	"io"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// Program is the name used in usage messages
const Program = "train"

// Environment values supplied by the training environment
const (
	EnvOutputDataDir = "SM_OUTPUT_DATA_DIR"
	EnvModelDir      = "SM_MODEL_DIR"
	EnvNumGpus       = "SM_NUM_GPUS"
	EnvChannelTrain  = "SM_CHANNEL_TRAIN"
	EnvChannelTest   = "SM_CHANNEL_TEST"
)

// Required lists environment values the job can't start without
var Required = []string{EnvOutputDataDir, EnvModelDir, EnvNumGpus, EnvChannelTrain, EnvChannelTest}

// ErrMissingEnv is wrapped by errors reporting an absent environment value
var ErrMissingEnv = xerrors.New("required environment value is not set")

// ResultsFile is the name of the evaluation results file in the output data directory
const ResultsFile = "eval_results.txt"

/*
Config is the job configuration. It's created once by Load and passed by value.
*/
type Config struct {
	Epochs         int    `arg:"--epochs" help:"number of training epochs"`
	TrainBatchSize int    `arg:"--train_batch_size" help:"training mini-batch size"`
	EvalBatchSize  int    `arg:"--eval_batch_size" help:"evaluation mini-batch size"`
	WarmupSteps    int    `arg:"--warmup_steps" help:"steps of linear learning rate warmup"`
	ModelName      string `arg:"--model_name,required" help:"pretrained model name, directory or URL"`
	LearningRate   string `arg:"--learning_rate" help:"peak learning rate"`
	TrainFile      string `arg:"--train_file" help:"training file name in the training channel"`
	TestFile       string `arg:"--test_file" help:"test file name in the test channel"`

	Seed         int64   `arg:"--seed" help:"random seed for shuffling and head initialization"`
	WeightDecay  float64 `arg:"--weight_decay" help:"decoupled weight decay"`
	LoggingSteps int     `arg:"--logging_steps" help:"log training loss every N steps"`
	MaxLength    int     `arg:"--max_length" help:"truncation length, 0 means the model maximum"`

	OutputDataDir string `arg:"--output_data_dir" help:"directory for evaluation results and logs"`
	ModelDir      string `arg:"--model_dir" help:"directory to save the trained model"`
	NumGpus       string `arg:"--n_gpus" help:"number of GPUs provided by the environment"`
	TrainingDir   string `arg:"--training_dir" help:"training channel directory"`
	TestDir       string `arg:"--test_dir" help:"test channel directory"`
}

/*
Defaults returns configuration with documented default values
*/
func Defaults() Config {
	return Config{
		Epochs:         1,
		TrainBatchSize: 32,
		EvalBatchSize:  64,
		WarmupSteps:    500,
		LearningRate:   "5e-5",
		TrainFile:      "train.csv",
		TestFile:       "test.csv",
		Seed:           42,
		LoggingSteps:   500,
	}
}

/*
Load resolves the configuration from command line arguments and environment.
All Required environment values must be present even if the corresponding flag is given.
*/
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	if wantsHelp(args) {
		return Config{}, arg.ErrHelp
	}
	cfg := Defaults()
	for _, name := range Required {
		v, ok := lookup(name)
		if !ok {
			return Config{}, xerrors.Errorf("%v: %w", name, ErrMissingEnv)
		}
		cfg.setenv(name, v)
	}

	known, unknown := KnownArgs(args)
	if len(unknown) > 0 {
		zlog.Warningf("ignoring unknown arguments: %v", strings.Join(unknown, " "))
	}

	p, err := arg.NewParser(arg.Config{Program: Program}, &cfg)
	if err != nil {
		return Config{}, zorros.Trace(err)
	}
	if err = p.Parse(known); err != nil {
		if err == arg.ErrHelp {
			return Config{}, err
		}
		return Config{}, zorros.Wrapf(err, "bad arguments: %v", err.Error())
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// help is printed even outside the training environment
func wantsHelp(args []string) bool {
	for _, a := range args {
		switch a {
		case "--":
			return false
		case "-h", "--help":
			return true
		}
	}
	return false
}

/*
Usage writes command line help
*/
func Usage(w io.Writer) {
	cfg := Defaults()
	if p, err := arg.NewParser(arg.Config{Program: Program}, &cfg); err == nil {
		p.WriteHelp(w)
	}
}

func (cfg *Config) setenv(name, value string) {
	switch name {
	case EnvOutputDataDir:
		cfg.OutputDataDir = value
	case EnvModelDir:
		cfg.ModelDir = value
	case EnvNumGpus:
		cfg.NumGpus = value
	case EnvChannelTrain:
		cfg.TrainingDir = value
	case EnvChannelTest:
		cfg.TestDir = value
	}
}

/*
Validate checks hyper-parameters are usable
*/
func (cfg Config) Validate() error {
	switch {
	case cfg.ModelName == "":
		return zorros.New("model_name must be specified")
	case cfg.Epochs < 1:
		return zorros.Errorf("epochs must be positive, got %d", cfg.Epochs)
	case cfg.TrainBatchSize < 1:
		return zorros.Errorf("train_batch_size must be positive, got %d", cfg.TrainBatchSize)
	case cfg.EvalBatchSize < 1:
		return zorros.Errorf("eval_batch_size must be positive, got %d", cfg.EvalBatchSize)
	case cfg.WarmupSteps < 0:
		return zorros.Errorf("warmup_steps must not be negative, got %d", cfg.WarmupSteps)
	case cfg.LoggingSteps < 0:
		return zorros.Errorf("logging_steps must not be negative, got %d", cfg.LoggingSteps)
	case cfg.MaxLength < 0:
		return zorros.Errorf("max_length must not be negative, got %d", cfg.MaxLength)
	case cfg.WeightDecay < 0:
		return zorros.Errorf("weight_decay must not be negative, got %v", cfg.WeightDecay)
	}
	if _, err := cfg.LR(); err != nil {
		return err
	}
	return nil
}

/*
LR parses the learning rate
*/
func (cfg Config) LR() (float64, error) {
	lr, err := strconv.ParseFloat(strings.TrimSpace(cfg.LearningRate), 64)
	if err != nil {
		return 0, zorros.Errorf("bad learning_rate `%v`: %v", cfg.LearningRate, err)
	}
	if lr <= 0 {
		return 0, zorros.Errorf("learning_rate must be positive, got %v", lr)
	}
	return lr, nil
}

/*
Gpus returns the number of GPUs reported by the environment, 0 if it's not a number
*/
func (cfg Config) Gpus() int {
	n, err := strconv.Atoi(strings.TrimSpace(cfg.NumGpus))
	if err != nil {
		return 0
	}
	return n
}

func (cfg Config) TrainPath() string {
	return filepath.Join(cfg.TrainingDir, cfg.TrainFile)
}

func (cfg Config) TestPath() string {
	return filepath.Join(cfg.TestDir, cfg.TestFile)
}

// LoggingDir is the directory for the job log and the training history
func (cfg Config) LoggingDir() string {
	return filepath.Join(cfg.OutputDataDir, "logs")
}

func (cfg Config) ResultsPath() string {
	return filepath.Join(cfg.OutputDataDir, ResultsFile)
}

/*
Params returns numeric hyper-parameters keyed by flag name
*/
func (cfg Config) Params() map[string]float64 {
	lr, _ := cfg.LR()
	return map[string]float64{
		"epochs":           float64(cfg.Epochs),
		"train_batch_size": float64(cfg.TrainBatchSize),
		"eval_batch_size":  float64(cfg.EvalBatchSize),
		"warmup_steps":     float64(cfg.WarmupSteps),
		"learning_rate":    lr,
		"seed":             float64(cfg.Seed),
		"weight_decay":     cfg.WeightDecay,
		"max_length":       float64(cfg.MaxLength),
	}
}

func (cfg Config) String() string {
	return fmt.Sprintf("model=%v epochs=%d batch=%d/%d warmup=%d lr=%v train=%v test=%v",
		cfg.ModelName, cfg.Epochs, cfg.TrainBatchSize, cfg.EvalBatchSize,
		cfg.WarmupSteps, cfg.LearningRate, cfg.TrainPath(), cfg.TestPath())
}

func flags() map[string]bool {
	known := map[string]bool{"h": true, "help": true}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		for _, k := range strings.Split(t.Field(i).Tag.Get("arg"), ",") {
			if strings.HasPrefix(k, "--") {
				known[k[2:]] = true
			}
		}
	}
	return known
}

/*
KnownArgs splits arguments into ones the job defines and the rest.
Every flag except -h/--help takes a value, either after '=' or as the next argument.
*/
func KnownArgs(args []string) (known, unknown []string) {
	defined := flags()
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			unknown = append(unknown, a)
			continue
		}
		name := strings.TrimLeft(a, "-")
		inline := strings.IndexByte(name, '=') >= 0
		if inline {
			name = name[:strings.IndexByte(name, '=')]
		}
		if defined[name] {
			known = append(known, a)
			if !inline && name != "h" && name != "help" && i+1 < len(args) {
				i++
				known = append(known, args[i])
			}
			continue
		}
		unknown = append(unknown, a)
		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			i++
			unknown = append(unknown, args[i])
		}
	}
	return
}
