package pipeline

import (
	"bytes"
	"fmt"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"strconv"
)

/*
WriteResults writes `name = value` lines sorted by metric name
*/
func WriteResults(path string, scores model.Scores) error {
	buf := bytes.Buffer{}
	zlog.Info("***** Eval results *****")
	for _, name := range scores.Names() {
		line := fmt.Sprintf("%s = %s", name, strconv.FormatFloat(scores[name], 'f', -1, 64))
		zlog.Info(line)
		buf.WriteString(line + "\n")
	}
	if err := iokit.File(path).WriteAll(buf.Bytes()); err != nil {
		return zorros.Wrapf(err, "failed to write results %v: %v", path, err.Error())
	}
	return nil
}
