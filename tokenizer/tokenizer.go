/*
Package tokenizer adapts the WordPiece tokenizer of pretrained sequence classifiers.

A pretrained directory contains vocab.txt (one token per line, the line number is the token id)
and tokenizer_config.json. Normalization, pre-tokenization, WordPiece and padding are done by
github.com/sugarme/tokenizer configured the way BERT tokenizers are.
*/
package tokenizer

import (
	"bufio"
	"encoding/json"
	hf "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	VocabFile         = "vocab.txt"
	ConfigFile        = "tokenizer_config.json"
	SpecialTokensFile = "special_tokens_map.json"
)

const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// SpecialTokens are placed in the beginning of a vocabulary built by BuildVocab
var SpecialTokens = []string{PadToken, UnkToken, ClsToken, SepToken, MaskToken}

// DefaultMaxLength is the model_max_length if tokenizer_config.json does not specify it
const DefaultMaxLength = 512

/*
Config is the tokenizer_config.json content
*/
type Config struct {
	TokenizerClass string `json:"tokenizer_class"`
	DoLowerCase    bool   `json:"do_lower_case"`
	ModelMaxLength int    `json:"model_max_length"`
	PadToken       string `json:"pad_token"`
	UnkToken       string `json:"unk_token"`
	ClsToken       string `json:"cls_token"`
	SepToken       string `json:"sep_token"`
	MaskToken      string `json:"mask_token"`
}

/*
DefaultConfig is a lower-casing WordPiece tokenizer configuration
*/
func DefaultConfig() Config {
	return Config{
		TokenizerClass: "WordPieceTokenizer",
		DoLowerCase:    true,
		ModelMaxLength: DefaultMaxLength,
		PadToken:       PadToken,
		UnkToken:       UnkToken,
		ClsToken:       ClsToken,
		SepToken:       SepToken,
		MaskToken:      MaskToken,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.TokenizerClass = fu.Fnzs(c.TokenizerClass, d.TokenizerClass)
	c.ModelMaxLength = fu.Fnzi(fu.Maxi(c.ModelMaxLength, 0), d.ModelMaxLength)
	c.PadToken = fu.Fnzs(c.PadToken, d.PadToken)
	c.UnkToken = fu.Fnzs(c.UnkToken, d.UnkToken)
	c.ClsToken = fu.Fnzs(c.ClsToken, d.ClsToken)
	c.SepToken = fu.Fnzs(c.SepToken, d.SepToken)
	c.MaskToken = fu.Fnzs(c.MaskToken, d.MaskToken)
	return c
}

func (c Config) specials() []string {
	return []string{c.PadToken, c.UnkToken, c.ClsToken, c.SepToken, c.MaskToken}
}

/*
Tokenizer converts text into token ids
*/
type Tokenizer struct {
	Config
	wp        *hf.Tokenizer
	tokens    []string
	pad, sep  int
	maxLength int
}

/*
Encoding is a tokenized batch. All rows have the same length.
*/
type Encoding struct {
	InputIds      [][]int
	AttentionMask [][]int
	PadId         int
}

// Len returns the padded sequence length
func (e *Encoding) Len() int {
	if len(e.InputIds) == 0 {
		return 0
	}
	return len(e.InputIds[0])
}

// clip cuts rows to n ids, a cut sequence ends with the separator
func (e *Encoding) clip(n, sep int) {
	for i, ids := range e.InputIds {
		if len(ids) <= n {
			continue
		}
		mask := e.AttentionMask[i]
		if mask[n] != 0 {
			ids[n-1] = sep
		}
		e.InputIds[i] = ids[:n]
		e.AttentionMask[i] = mask[:n]
	}
}

/*
Create writes the vocabulary tokens and the configuration into the directory
and loads tokenizer from it
*/
func Create(dir string, tokens []string, cfg Config) (*Tokenizer, error) {
	if len(tokens) == 0 {
		return nil, zorros.New("empty vocabulary")
	}
	t := &Tokenizer{Config: cfg.withDefaults(), tokens: tokens}
	if err := t.SaveTo(dir); err != nil {
		return nil, err
	}
	return FromPretrained(dir)
}

/*
FromPretrained loads tokenizer from the pretrained model directory
*/
func FromPretrained(dir string) (*Tokenizer, error) {
	cfg := DefaultConfig()
	cfgPath := filepath.Join(dir, ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil {
		bs, err := iokit.File(cfgPath).ReadAll()
		if err != nil {
			return nil, zorros.Trace(err)
		}
		if err = json.Unmarshal(bs, &cfg); err != nil {
			return nil, zorros.Wrapf(err, "bad tokenizer config %v: %v", cfgPath, err.Error())
		}
	}
	cfg = cfg.withDefaults()
	if cfg.ModelMaxLength < 3 {
		return nil, zorros.Errorf("model_max_length is too small: %d", cfg.ModelMaxLength)
	}

	vocabPath := filepath.Join(dir, VocabFile)
	tokens, err := ReadVocab(iokit.File(vocabPath))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int, len(tokens))
	for i, s := range tokens {
		if _, ok := ids[s]; !ok {
			ids[s] = i
		}
	}
	for _, s := range cfg.specials()[:4] {
		if _, ok := ids[s]; !ok {
			return nil, zorros.Errorf("vocabulary does not contain special token %v", s)
		}
	}

	model, err := wordpiece.NewWordPieceFromFile(vocabPath, cfg.UnkToken)
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to load vocabulary %v: %v", vocabPath, err.Error())
	}
	wp := hf.NewTokenizer(model)
	wp.WithNormalizer(normalizer.NewBertNormalizer(true, true, cfg.DoLowerCase, cfg.DoLowerCase))
	wp.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	// only tokens of the vocabulary are added, so ids stay below VocabSize
	var special []hf.AddedToken
	for _, s := range cfg.specials() {
		if _, ok := ids[s]; ok {
			special = append(special, hf.NewAddedToken(s, true))
		}
	}
	wp.AddSpecialTokens(special)

	t := &Tokenizer{
		Config:    cfg,
		wp:        wp,
		tokens:    tokens,
		pad:       ids[cfg.PadToken],
		sep:       ids[cfg.SepToken],
		maxLength: cfg.ModelMaxLength,
	}
	wp.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Id: t.sep, Value: cfg.SepToken},
		processor.PostToken{Id: ids[cfg.ClsToken], Value: cfg.ClsToken}))
	wp.WithPadding(&hf.PaddingParams{
		Strategy:  *hf.NewPaddingStrategy(),
		Direction: hf.Right,
		PadId:     t.pad,
		PadTypeId: 0,
		PadToken:  cfg.PadToken,
	})
	return t, nil
}

/*
ReadVocab reads vocabulary tokens one per line
*/
func ReadVocab(input iokit.Input) ([]string, error) {
	rd, err := input.Open()
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to open vocabulary: %v", err.Error())
	}
	defer rd.Close()
	var tokens []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		tokens = append(tokens, strings.TrimRight(sc.Text(), "\r"))
	}
	if err = sc.Err(); err != nil {
		return nil, zorros.Trace(err)
	}
	if len(tokens) == 0 {
		return nil, zorros.New("empty vocabulary")
	}
	return tokens, nil
}

/*
WithMaxLength returns a copy of tokenizer truncating sequences to n tokens,
n <= 0 or greater than model_max_length keeps model_max_length
*/
func (t *Tokenizer) WithMaxLength(n int) *Tokenizer {
	x := *t
	if n > 0 && n < t.ModelMaxLength {
		x.maxLength = n
	}
	if x.maxLength < 3 {
		x.maxLength = 3
	}
	return &x
}

func (t *Tokenizer) MaxLength() int {
	return t.maxLength
}

func (t *Tokenizer) VocabSize() int {
	return len(t.tokens)
}

func (t *Tokenizer) PadId() int {
	return t.pad
}

/*
Batch encodes texts as [CLS] tokens [SEP] padding all sequences to the longest one in the batch,
sequences longer than the max length are truncated
*/
func (t *Tokenizer) Batch(texts []string) (*Encoding, error) {
	e := &Encoding{
		InputIds:      make([][]int, len(texts)),
		AttentionMask: make([][]int, len(texts)),
		PadId:         t.pad,
	}
	if len(texts) == 0 {
		return e, nil
	}
	inputs := make([]hf.EncodeInput, len(texts))
	for i, s := range texts {
		inputs[i] = hf.NewSingleEncodeInput(hf.NewInputSequence(s))
	}
	encs, err := t.wp.EncodeBatch(inputs, true)
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to encode batch: %v", err.Error())
	}
	for i, x := range encs {
		e.InputIds[i] = x.Ids
		e.AttentionMask[i] = x.AttentionMask
	}
	e.clip(t.maxLength, t.sep)
	return e, nil
}

/*
Files returns functions writing tokenizer files of a pretrained directory
*/
func (t *Tokenizer) Files() map[string]func(io.Writer) error {
	return map[string]func(io.Writer) error{
		VocabFile: func(w io.Writer) error {
			bw := bufio.NewWriter(w)
			for _, s := range t.tokens {
				if _, err := bw.WriteString(s + "\n"); err != nil {
					return zorros.Trace(err)
				}
			}
			return bw.Flush()
		},
		ConfigFile: writeJson(t.Config),
		SpecialTokensFile: writeJson(map[string]string{
			"pad_token":  t.PadToken,
			"unk_token":  t.UnkToken,
			"cls_token":  t.ClsToken,
			"sep_token":  t.SepToken,
			"mask_token": t.MaskToken,
		}),
	}
}

/*
SaveTo writes tokenizer files into the directory
*/
func (t *Tokenizer) SaveTo(dir string) error {
	for name, f := range t.Files() {
		wh, err := iokit.File(filepath.Join(dir, name)).Create()
		if err != nil {
			return zorros.Trace(err)
		}
		if err = f(wh); err != nil {
			wh.End()
			return err
		}
		if err = wh.Commit(); err != nil {
			return zorros.Trace(err)
		}
	}
	return nil
}

func writeJson(v interface{}) func(io.Writer) error {
	return func(w io.Writer) error {
		bs, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return zorros.Trace(err)
		}
		_, err = w.Write(append(bs, '\n'))
		return err
	}
}
