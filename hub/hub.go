/*
Package hub resolves pretrained model names to local directories.

A name may be a local directory, an http(s)/s3/gs url of a model directory or a bare name
looked up in the local models cache and, if the GOML_HUB_URL environment variable is set,
downloaded from <GOML_HUB_URL>/<name>/.
*/
package hub

import (
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/seqclass/fu"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EnvHubUrl is the environment variable specifying the default hub url
const EnvHubUrl = "GOML_HUB_URL"

/*
Hub is a remote storage of pretrained models
*/
type Hub struct {
	Url      string   // base url, models are <Url>/<name>/<file>
	CacheDir string   // local models cache, fu.ModelPath if empty
	Required []string // files every model directory has
	Optional []string // files downloaded if exist
}

/*
Default returns the hub specified by GOML_HUB_URL
*/
func Default(required, optional []string) Hub {
	return Hub{Url: os.Getenv(EnvHubUrl), Required: required, Optional: optional}
}

func isUrl(s string) bool {
	for _, p := range []string{"http://", "https://", "s3://", "gs://"} {
		if strings.HasPrefix(strings.ToLower(s), p) {
			return true
		}
	}
	return false
}

func (h Hub) cached(name string) string {
	if h.CacheDir == "" {
		return fu.ModelPath(name)
	}
	return filepath.Join(h.CacheDir, strings.Replace(name, "/", "--", -1))
}

func (h Hub) complete(dir string) bool {
	for _, f := range h.Required {
		if !fu.Exists(filepath.Join(dir, f)) {
			return false
		}
	}
	return true
}

/*
Resolve returns the local directory of the pretrained model
*/
func (h Hub) Resolve(name string) (string, error) {
	if name == "" {
		return "", zorros.New("model name is empty")
	}
	if fu.IsDir(name) {
		return name, nil
	}
	var base, dir string
	if isUrl(name) {
		base = strings.TrimRight(name, "/")
		dir = h.cached(base[strings.Index(base, "://")+3:])
	} else {
		dir = h.cached(name)
		if h.complete(dir) {
			return dir, nil
		}
		if h.Url == "" {
			return "", zorros.Errorf("pretrained model `%v` is not found: it's not a directory, not cached and %v is not set", name, EnvHubUrl)
		}
		base = strings.TrimRight(h.Url, "/") + "/" + strings.Trim(name, "/")
	}
	if err := h.fetch(base, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (h Hub) fetch(base, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return zorros.Trace(err)
	}
	for _, f := range h.Required {
		url := base + "/" + f
		if err := check(url); err != nil {
			return err
		}
		if err := download(url, filepath.Join(dir, f)); err != nil {
			return err
		}
	}
	for _, f := range h.Optional {
		url := base + "/" + f
		if check(url) != nil {
			continue
		}
		if err := download(url, filepath.Join(dir, f)); err != nil {
			zlog.Warningf("optional file %v is not downloaded: %v", url, err)
		}
	}
	zlog.Infof("pretrained model %v is cached in %v", base, dir)
	return nil
}

// check ensures the http resource exists, other schemas are checked by downloading
func check(url string) error {
	if !strings.HasPrefix(strings.ToLower(url), "http") {
		return nil
	}
	resp, err := http.Head(url)
	if err != nil {
		return zorros.Wrapf(err, "failed to access %v: %v", url, err.Error())
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return zorros.Errorf("failed to access %v: %v", url, resp.Status)
	}
	return nil
}

func download(url, path string) error {
	rd, err := iokit.Url(url, iokit.Cache(path)).Open()
	if err != nil {
		os.Remove(path + "~")
		return zorros.Wrapf(err, "failed to download %v: %v", url, err.Error())
	}
	return rd.Close()
}
