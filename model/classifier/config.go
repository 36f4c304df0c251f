/*
Package classifier implements the pretrained sequence classifier fine-tuned by the training job.

The model averages token embeddings of a sequence, passes the result through a tanh pooler
and a linear classification head. A pretrained directory holds config.json, tokenizer files
and weight matrices; the classification head is optional and is initialized randomly if absent.
*/
package classifier

import (
	"encoding/json"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/seqclass/tokenizer"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"path/filepath"
	"strconv"
)

// Model directory files
const (
	ConfigFile     = "config.json"
	EmbeddingsFile = "embeddings.bin.xz"
	PoolerFile     = "pooler.bin.xz"
	ClassifierFile = "classifier.bin.xz"
)

// Artifacts are all the files a model directory can hold, stale ones are removed on save
var Artifacts = []string{
	ConfigFile, EmbeddingsFile, PoolerFile, ClassifierFile,
	tokenizer.VocabFile, tokenizer.ConfigFile, tokenizer.SpecialTokensFile,
}

// ModelType is the config.json model_type of this model
const ModelType = "embedding-bag"

/*
Config is the config.json content
*/
type Config struct {
	ModelType             string            `json:"model_type"`
	VocabSize             int               `json:"vocab_size"`
	HiddenSize            int               `json:"hidden_size"`
	MaxPositionEmbeddings int               `json:"max_position_embeddings"`
	NumLabels             int               `json:"num_labels"`
	InitializerRange      float64           `json:"initializer_range"`
	PadTokenId            int               `json:"pad_token_id"`
	Id2Label              map[string]string `json:"id2label,omitempty"`
	Label2Id              map[string]int    `json:"label2id,omitempty"`
}

// DefaultInitializerRange is the standard deviation of initial weights
const DefaultInitializerRange = 0.02

func (c Config) withDefaults() Config {
	c.ModelType = fu.Fnzs(c.ModelType, ModelType)
	c.NumLabels = fu.Fnzi(c.NumLabels, 2)
	c.InitializerRange = fu.Fnzd(c.InitializerRange, DefaultInitializerRange)
	c.MaxPositionEmbeddings = fu.Fnzi(c.MaxPositionEmbeddings, 512)
	if len(c.Id2Label) == 0 {
		c.Id2Label = map[string]string{}
		c.Label2Id = map[string]int{}
		for i := 0; i < c.NumLabels; i++ {
			l := "LABEL_" + strconv.Itoa(i)
			c.Id2Label[strconv.Itoa(i)] = l
			c.Label2Id[l] = i
		}
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.ModelType != ModelType:
		return zorros.Errorf("unsupported model type `%v`", c.ModelType)
	case c.VocabSize <= 0:
		return zorros.Errorf("bad vocab_size %d", c.VocabSize)
	case c.HiddenSize <= 0:
		return zorros.Errorf("bad hidden_size %d", c.HiddenSize)
	case c.NumLabels != 2:
		return zorros.Errorf("binary classifier expects 2 labels, got %d", c.NumLabels)
	}
	return nil
}

/*
ReadConfig reads config.json from the pretrained directory
*/
func ReadConfig(dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	bs, err := iokit.File(path).ReadAll()
	if err != nil {
		return Config{}, zorros.Wrapf(err, "failed to read model config %v: %v", path, err.Error())
	}
	c := Config{}
	if err = json.Unmarshal(bs, &c); err != nil {
		return Config{}, zorros.Wrapf(err, "bad model config %v: %v", path, err.Error())
	}
	c = c.withDefaults()
	return c, c.validate()
}

func (c Config) Memorize(w io.Writer) error {
	bs, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return zorros.Trace(err)
	}
	_, err = w.Write(append(bs, '\n'))
	return err
}
