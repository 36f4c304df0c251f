package model

import (
	"github.com/dustin/go-humanize"
	"github.com/ulikunitz/xz"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

/*
Memorizer writes a part of the model state
*/
type Memorizer interface {
	Memorize(io.Writer) error
}

/*
MemorizeFunc is a function implementing Memorizer
*/
type MemorizeFunc func(io.Writer) error

func (f MemorizeFunc) Memorize(w io.Writer) error {
	return f(w)
}

/*
MemorizeMap maps file name to the model state part stored in it
*/
type MemorizeMap map[string]Memorizer

// Compressed is the extension of files written as xz streams
const Compressed = ".xz"

/*
Memorize writes every part of the model into the directory,
files with the .xz extension are compressed.
Files named in known but absent from the map are removed,
other files of the directory are left as is.
*/
func Memorize(dir string, m MemorizeMap, known ...string) (err error) {
	if err = os.MkdirAll(dir, 0755); err != nil {
		return zorros.Trace(err)
	}
	for _, name := range known {
		if _, ok := m[name]; ok {
			continue
		}
		if e := os.Remove(filepath.Join(dir, name)); e != nil && !os.IsNotExist(e) {
			return zorros.Wrapf(e, "failed to remove stale %v: %v", name, e.Error())
		}
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	var size int64
	for _, name := range names {
		path := filepath.Join(dir, name)
		output := iokit.Output(iokit.File(path))
		if strings.HasSuffix(name, Compressed) {
			output = iokit.Lzma2(output)
		}
		wh, e := output.Create()
		if e != nil {
			return zorros.Wrapf(e, "failed to create %v: %v", path, e.Error())
		}
		if e = m[name].Memorize(wh); e != nil {
			wh.End()
			return zorros.Wrapf(e, "failed to memorize %v: %v", name, e.Error())
		}
		if e = wh.Commit(); e != nil {
			return zorros.Wrapf(e, "failed to commit %v: %v", path, e.Error())
		}
		if st, e := os.Stat(path); e == nil {
			size += st.Size()
		}
	}
	zlog.Infof("model saved to %v: %d files, %v", dir, len(names), humanize.Bytes(uint64(size)))
	return
}

/*
Memorized opens a model file written by Memorize
*/
func Memorized(dir, name string) (io.ReadCloser, error) {
	path := filepath.Join(dir, name)
	rd, err := iokit.File(path).Open()
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to open %v: %v", path, err.Error())
	}
	if !strings.HasSuffix(name, Compressed) {
		return rd, nil
	}
	xr, err := xz.NewReader(rd)
	if err != nil {
		rd.Close()
		return nil, zorros.Wrapf(err, "failed to decompress %v: %v", path, err.Error())
	}
	return iokit.Reader(xr, rd.Close), nil
}
