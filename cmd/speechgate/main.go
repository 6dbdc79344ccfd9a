// Command speechgate transcribes WAV files through a set of whisper sidecars,
// retrying, falling back and failing over between them.
//
// Usage:
//
//	speechgate [--config config.yml] transcribe [--watch] file.wav...
//	speechgate [--config config.yml] stream [--chunk 500ms] [--realtime] file.wav
//	speechgate version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kbukum/speechgate/config"
	"github.com/kbukum/speechgate/logger"
	"github.com/kbukum/speechgate/version"
)

const serviceName = "speechgate"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "speechgate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	configPath := global.String("config", "", "path to config.yml")
	envPath := global.String("env", "", "path to .env file")
	global.SetInterspersed(false)
	global.Usage = usage(global)
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return fmt.Errorf("missing command")
	}
	cmd, cmdArgs := rest[0], rest[1:]
	if cmd == "version" {
		fmt.Println(version.Get())
		return nil
	}

	cfg := defaultAppConfig()
	var loadOpts []config.LoaderOption
	if *configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(*configPath))
	}
	if *envPath != "" {
		loadOpts = append(loadOpts, config.WithEnvFile(*envPath))
	}
	if err := config.LoadConfig(serviceName, &cfg, loadOpts...); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "transcribe":
		return runTranscribe(ctx, &cfg, *configPath, cmdArgs)
	case "stream":
		return runStream(ctx, &cfg, cmdArgs)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <transcribe|stream|version> [args]\n\n", serviceName)
		fs.PrintDefaults()
	}
}
