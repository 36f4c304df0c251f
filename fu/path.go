package fu

import (
	"go-ml.dev/pkg/iokit"
	"os"
	"path/filepath"
	"strings"
)

/*
ModelPath returns the local directory of a pretrained model,
relative names live in the go-ml models cache
*/
func ModelPath(s string) string {
	if filepath.IsAbs(s) {
		return s
	}
	return iokit.CacheDir(filepath.Join("go-ml", "Models", strings.Replace(s, "/", "--", -1)))
}

/*
Exists reports that the path exists
*/
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

/*
IsDir reports that the path exists and it's a directory
*/
func IsDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
