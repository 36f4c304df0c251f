package main

import (
	arg "github.com/alexflint/go-arg"
	"go-ml.dev/pkg/seqclass/dataset"
	"go-ml.dev/pkg/seqclass/model/classifier"
	"go-ml.dev/pkg/seqclass/tokenizer"
	"go-ml.dev/pkg/zorros/zlog"
)

type args struct {
	Corpus     []string `arg:"--corpus,required" help:"CSV files with text and sentiment columns the vocabulary is built from"`
	Output     string   `arg:"--output,required" help:"pretrained model directory"`
	VocabSize  int      `arg:"--vocab_size" help:"maximal vocabulary size"`
	HiddenSize int      `arg:"--hidden_size" help:"embedding size"`
	MaxLength  int      `arg:"--max_length" help:"model_max_length of the tokenizer"`
	Lowercase  bool     `arg:"--lowercase" help:"lower case and strip accents"`
	Seed       int64    `arg:"--seed" help:"random seed of weights initialization"`
}

func main() {
	a := args{VocabSize: 8000, HiddenSize: 64, MaxLength: 128, Lowercase: true, Seed: 42}
	arg.MustParse(&a)

	var texts []string
	for _, path := range a.Corpus {
		ds, err := dataset.Load(path)
		if err != nil {
			zlog.Fatalf("%v", err)
		}
		for i := 0; i < ds.Len(); i++ {
			texts = append(texts, ds.Text(i))
		}
	}

	tcfg := tokenizer.DefaultConfig()
	tcfg.DoLowerCase = a.Lowercase
	tcfg.ModelMaxLength = a.MaxLength
	vocab, err := tokenizer.BuildVocab(texts, a.VocabSize, a.Lowercase)
	if err != nil {
		zlog.Fatalf("%v", err)
	}
	tok, err := tokenizer.Create(a.Output, vocab, tcfg)
	if err != nil {
		zlog.Fatalf("%v", err)
	}
	if _, err = classifier.CreatePretrained(a.Output, tok, classifier.Config{HiddenSize: a.HiddenSize}, a.Seed); err != nil {
		zlog.Fatalf("%v", err)
	}
	zlog.Infof("pretrained model with %d tokens vocabulary is written to %v", tok.VocabSize(), a.Output)
}
