package tokenizer

import (
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"strings"
	"testing"
)

var vocab = []string{
	PadToken, UnkToken, ClsToken, SepToken, MaskToken,
	"un", "##aff", "##able", ",", "hello", "world", "caf", "##e",
}

func create(t *testing.T, tokens []string, cfg Config) *Tokenizer {
	dir := fs.NewDir(t, "tokenizer")
	defer dir.Remove()
	tok, err := Create(dir.Path(), tokens, cfg)
	assert.NilError(t, err)
	return tok
}

// pieces returns tokens of the text between [CLS] and [SEP]
func pieces(t *testing.T, tok *Tokenizer, text string) []string {
	e, err := tok.Batch([]string{text})
	assert.NilError(t, err)
	ids := e.InputIds[0]
	assert.Equal(t, ids[0], 2)
	assert.Equal(t, ids[len(ids)-1], tok.sep)
	r := []string{}
	for _, id := range ids[1 : len(ids)-1] {
		r = append(r, tok.tokens[id])
	}
	return r
}

func Test_Wordpiece(t *testing.T) {
	tok := create(t, vocab, DefaultConfig())
	assert.DeepEqual(t,
		pieces(t, tok, "Unaffable, HELLO\tworld!"),
		[]string{"un", "##aff", "##able", ",", "hello", "world", UnkToken})
	assert.DeepEqual(t, pieces(t, tok, "Café"), []string{"caf", "##e"})
	assert.DeepEqual(t, pieces(t, tok, "hello [SEP] world"), []string{"hello", SepToken, "world"})
	assert.DeepEqual(t, pieces(t, tok, strings.Repeat("a", 101)), []string{UnkToken})
}

func Test_CaseSensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DoLowerCase = false
	tok := create(t, vocab, cfg)
	assert.DeepEqual(t, pieces(t, tok, "Hello world"), []string{UnkToken, "world"})
}

func Test_CustomSpecialTokens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PadToken, cfg.UnkToken, cfg.ClsToken, cfg.SepToken, cfg.MaskToken = "<pad>", "<unk>", "<s>", "</s>", "<mask>"
	tok := create(t, []string{"<pad>", "<unk>", "<s>", "</s>", "hello"}, cfg)
	e, err := tok.Batch([]string{"Hello </s> hello"})
	assert.NilError(t, err)
	assert.DeepEqual(t, e.InputIds[0], []int{2, 4, 3, 4, 3})
	assert.Equal(t, tok.VocabSize(), 5)
}

func Test_Truncation(t *testing.T) {
	tok := create(t, vocab, DefaultConfig())
	short := tok.WithMaxLength(4)
	assert.Equal(t, short.MaxLength(), 4)
	assert.Equal(t, tok.MaxLength(), DefaultMaxLength)
	assert.Equal(t, tok.WithMaxLength(0).MaxLength(), DefaultMaxLength)
	assert.Equal(t, tok.WithMaxLength(100000).MaxLength(), DefaultMaxLength)

	e, err := short.Batch([]string{"hello", "hello world hello world"})
	assert.NilError(t, err)
	assert.Equal(t, e.Len(), 4)
	assert.DeepEqual(t, e.InputIds[0], []int{2, 9, 3, 0})
	assert.DeepEqual(t, e.AttentionMask[0], []int{1, 1, 1, 0})
	assert.DeepEqual(t, e.InputIds[1], []int{2, 9, 10, 3})
	assert.DeepEqual(t, e.AttentionMask[1], []int{1, 1, 1, 1})

	e, err = tok.Batch([]string{"hello world hello world"})
	assert.NilError(t, err)
	assert.DeepEqual(t, e.InputIds[0], []int{2, 9, 10, 9, 10, 3})
}

func Test_BatchPadding(t *testing.T) {
	tok := create(t, vocab, DefaultConfig())
	e, err := tok.Batch([]string{"hello", "hello world, unaffable"})
	assert.NilError(t, err)
	assert.Equal(t, e.Len(), 8)
	assert.Equal(t, e.PadId, tok.PadId())
	for i := range e.InputIds {
		assert.Equal(t, len(e.InputIds[i]), e.Len())
		assert.Equal(t, len(e.AttentionMask[i]), e.Len())
	}
	assert.DeepEqual(t, e.InputIds[0], []int{2, 9, 3, 0, 0, 0, 0, 0})
	assert.DeepEqual(t, e.AttentionMask[0], []int{1, 1, 1, 0, 0, 0, 0, 0})
	assert.DeepEqual(t, e.AttentionMask[1], []int{1, 1, 1, 1, 1, 1, 1, 1})

	e, err = tok.Batch(nil)
	assert.NilError(t, err)
	assert.Equal(t, e.Len(), 0)
}

func Test_MissingSpecialToken(t *testing.T) {
	dir := fs.NewDir(t, "tokenizer")
	defer dir.Remove()
	_, err := Create(dir.Path(), []string{PadToken, "hello"}, DefaultConfig())
	assert.ErrorContains(t, err, UnkToken)
	_, err = Create(dir.Path(), nil, DefaultConfig())
	assert.ErrorContains(t, err, "empty vocabulary")
}

func Test_SaveLoad(t *testing.T) {
	dir := fs.NewDir(t, "tokenizer")
	defer dir.Remove()
	cfg := DefaultConfig()
	cfg.ModelMaxLength = 16
	tok := create(t, vocab, cfg)
	assert.NilError(t, tok.SaveTo(dir.Path()))

	x, err := FromPretrained(dir.Path())
	assert.NilError(t, err)
	assert.Equal(t, x.VocabSize(), len(vocab))
	assert.Equal(t, x.MaxLength(), 16)
	assert.DeepEqual(t, x.tokens, vocab)
	assert.DeepEqual(t, pieces(t, x, "unaffable"), pieces(t, tok, "unaffable"))
}

func Test_VocabOnly(t *testing.T) {
	dir := fs.NewDir(t, "tokenizer", fs.WithFile(VocabFile, strings.Join(vocab, "\n")+"\n"))
	defer dir.Remove()
	tok, err := FromPretrained(dir.Path())
	assert.NilError(t, err)
	assert.Assert(t, tok.DoLowerCase)
	assert.DeepEqual(t, pieces(t, tok, "World nope"), []string{"world", UnkToken})
}

func Test_PartialConfig(t *testing.T) {
	dir := fs.NewDir(t, "tokenizer",
		fs.WithFile(VocabFile, strings.Join(vocab, "\n")+"\n"),
		fs.WithFile(ConfigFile, `{"model_max_length": 16}`))
	defer dir.Remove()
	tok, err := FromPretrained(dir.Path())
	assert.NilError(t, err)
	assert.Assert(t, tok.DoLowerCase)
	assert.Equal(t, tok.MaxLength(), 16)
	assert.Equal(t, tok.SepToken, SepToken)
	assert.DeepEqual(t, pieces(t, tok, "HELLO"), []string{"hello"})
}

func Test_BuildVocab(t *testing.T) {
	texts := []string{"Good good dress", "bad dress", "good!"}
	v, err := BuildVocab(texts, 0, true)
	assert.NilError(t, err)
	assert.DeepEqual(t, v[:len(SpecialTokens)], SpecialTokens)
	tok := create(t, v, DefaultConfig())
	assert.DeepEqual(t, pieces(t, tok, "Good dress!"), []string{"good", "dress", "!"})
	// unseen words are built from characters
	assert.DeepEqual(t, pieces(t, tok, "bag"), []string{"b", "##a", "##g"})

	small, err := BuildVocab(texts, 1, true)
	assert.NilError(t, err)
	for _, s := range small {
		assert.Assert(t, s != "good")
	}
}
