package classifier

import (
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/seqclass/tokenizer"
)

/*
CreatePretrained writes a randomly initialized model without the classification head
together with the tokenizer files, so the directory can be fine-tuned like a downloaded one
*/
func CreatePretrained(dir string, tok *tokenizer.Tokenizer, cfg Config, seed int64) (*Model, error) {
	cfg.VocabSize = tok.VocabSize()
	cfg.PadTokenId = tok.PadId()
	cfg.MaxPositionEmbeddings = tok.MaxLength()
	m, err := New(cfg, seed)
	if err != nil {
		return nil, err
	}
	mm := m.Memorize(false)
	for name, f := range tok.Files() {
		mm[name] = model.MemorizeFunc(f)
	}
	if err = model.Memorize(dir, mm, Artifacts...); err != nil {
		return nil, err
	}
	return m, nil
}
