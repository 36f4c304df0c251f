package main

import (
	arg "github.com/alexflint/go-arg"
	"go-ml.dev/pkg/seqclass/config"
	"go-ml.dev/pkg/seqclass/pipeline"
	"go-ml.dev/pkg/zorros/zlog"
	"golang.org/x/xerrors"
	"os"
	"path/filepath"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		if xerrors.Is(err, arg.ErrHelp) {
			config.Usage(os.Stdout)
			os.Exit(0)
		}
		zlog.Fatalf("%v", err)
	}
	if err = os.MkdirAll(cfg.LoggingDir(), 0755); err != nil {
		zlog.Fatalf("failed to create logging directory: %v", err)
	}
	zlog.Config{
		Name:      config.Program,
		Verbose:   true,
		LogFile:   filepath.Join(cfg.LoggingDir(), config.Program+".log"),
		SentryDsn: os.Getenv("SENTRY_DSN"),
	}.Init()
	defer zlog.Close()

	zlog.Info(cfg.String())
	if n := cfg.Gpus(); n > 0 {
		zlog.Warningf("%d GPUs are available but training runs on CPU", n)
	}
	if err = pipeline.New(cfg).Run(); err != nil {
		zlog.Fatalf("%v", err)
	}
}
