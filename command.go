package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"webpconv/logger"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	errUsage            = errors.New("usage error")
	errInvalidDirectory = errors.New("not a valid directory")
)

type Config struct {
	InputPath    string
	Recursive    bool
	Delete       bool
	VerifyOutput bool
	Verbose      bool
	NoColor      bool
	LogFormat    string
}

func configFromCommand(cmd *cli.Command) *Config {
	return &Config{
		InputPath:    cmd.Args().First(),
		Recursive:    cmd.Bool("recursive"),
		Delete:       cmd.Bool("delete"),
		VerifyOutput: cmd.Bool("verify-output"),
		Verbose:      cmd.Bool("verbose"),
		NoColor:      cmd.Bool("no-color"),
		LogFormat:    cmd.String("log-format"),
	}
}

func (cfg *Config) validate() error {
	if cfg.InputPath == "" {
		return fmt.Errorf("%w: no input directory specified", errUsage)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", errUsage, cfg.LogFormat)
	}
	return nil
}

func (cfg *Config) validateDirectory() error {
	info, err := os.Stat(cfg.InputPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", errInvalidDirectory, cfg.InputPath)
	}
	return nil
}

func (cfg *Config) LoggerOptions(out io.Writer) *logger.RichLoggerOptions {
	opts := logger.DefaultOptions()
	opts.Output = out
	opts.EnableColors = !cfg.NoColor
	opts.EnableJSON = cfg.LogFormat == "json"
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	return opts
}

func newCommand(stdout, stderr io.Writer, started *bool) *cli.Command {
	return &cli.Command{
		Name:      "webpconv",
		Usage:     "Convert JPEG, PNG and animated GIF images to WebP",
		ArgsUsage: "<directory>",
		Version:   fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Process directories recursively",
			},
			&cli.BoolFlag{
				Name:    "delete",
				Aliases: []string{"d"},
				Usage:   "Delete original images after successful conversion",
			},
			&cli.BoolFlag{
				Name:  "verify-output",
				Usage: "Only count files detected as WebP when reporting unconverted files",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log skipped files and timings",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log output format: text or json",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*started = true

			cfg := configFromCommand(cmd)
			if err := cfg.validate(); err != nil {
				_ = cli.ShowAppHelp(cmd)
				return err
			}

			return execute(ctx, cfg, stdout)
		},
	}
}

func execute(ctx context.Context, cfg *Config, stdout io.Writer) error {
	console := logger.NewConsole(cfg.LoggerOptions(stdout))

	if err := cfg.validateDirectory(); err != nil {
		console.Error("Error: The specified path is not a valid directory: %s", cfg.InputPath)
		return err
	}

	conv, err := NewWebPConverter(console)
	if err != nil {
		console.Error("%v", err)
		return err
	}

	processor := NewProcessor(cfg, conv, console)
	err = processor.ProcessPath(ctx, cfg.InputPath, cfg.Recursive)
	processor.displayResults()

	if errors.Is(err, ErrInterrupted) {
		console.Warn("Process interrupted by user.")
		return err
	}
	if err != nil {
		console.Error("Processing error: %v", err)
		return err
	}
	return nil
}

// run executes the command and maps its outcome to a process exit code:
// 0 on completion or interrupt, 1 for an invalid directory or setup failure,
// 2 for usage errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	started := false
	cmd := newCommand(stdout, stderr, &started)

	err := cmd.Run(ctx, args)
	switch {
	case err == nil, errors.Is(err, ErrInterrupted):
		return 0
	case errors.Is(err, errUsage), !started:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		return 1
	}
}
