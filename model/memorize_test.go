package model

import (
	"fmt"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"testing"
)

func Test_Memorize(t *testing.T) {
	dir := fs.NewDir(t, "memorize")
	defer dir.Remove()
	text := strings.Repeat("weights ", 1000)
	err := Memorize(dir.Join("model"), MemorizeMap{
		"config.json": MemorizeFunc(func(w io.Writer) error {
			_, err := io.WriteString(w, `{"a":1}`)
			return err
		}),
		"weights.bin.xz": MemorizeFunc(func(w io.Writer) error {
			_, err := io.WriteString(w, text)
			return err
		}),
	})
	assert.NilError(t, err)

	for name, want := range map[string]string{"config.json": `{"a":1}`, "weights.bin.xz": text} {
		rd, err := Memorized(dir.Join("model"), name)
		assert.NilError(t, err)
		bs, err := ioutil.ReadAll(rd)
		assert.NilError(t, err)
		assert.NilError(t, rd.Close())
		assert.Equal(t, string(bs), want)
	}

	raw, err := ioutil.ReadFile(dir.Join("model", "weights.bin.xz"))
	assert.NilError(t, err)
	assert.Assert(t, len(raw) < len(text))

	_, err = Memorized(dir.Join("model"), "absent.bin")
	assert.Assert(t, err != nil)
}

func Test_MemorizeFailure(t *testing.T) {
	dir := fs.NewDir(t, "memorize")
	defer dir.Remove()
	err := Memorize(dir.Path(), MemorizeMap{
		"broken": MemorizeFunc(func(io.Writer) error { return fmt.Errorf("no weights") }),
	})
	assert.ErrorContains(t, err, "no weights")
}

func Test_MemorizeStale(t *testing.T) {
	dir := fs.NewDir(t, "memorize",
		fs.WithFile("head.bin", "old head"),
		fs.WithFile("notes.txt", "keep me"))
	defer dir.Remove()
	write := func(s string) Memorizer {
		return MemorizeFunc(func(w io.Writer) error {
			_, err := io.WriteString(w, s)
			return err
		})
	}
	err := Memorize(dir.Path(), MemorizeMap{"body.bin": write("new body")}, "body.bin", "head.bin", "absent.bin")
	assert.NilError(t, err)

	_, err = os.Stat(dir.Join("head.bin"))
	assert.Assert(t, os.IsNotExist(err))
	bs, err := ioutil.ReadFile(dir.Join("notes.txt"))
	assert.NilError(t, err)
	assert.Equal(t, string(bs), "keep me")
	bs, err = ioutil.ReadFile(dir.Join("body.bin"))
	assert.NilError(t, err)
	assert.Equal(t, string(bs), "new body")
}
