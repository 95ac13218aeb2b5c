// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// batch-image-processor rewrites a Zip archive of images into a Zip archive
// of square JPEGs with case-mapped names.
//
// Usage:
//
//	batch-image-processor [flags] input.zip
//	batch-image-processor --list input.zip
//	batch-image-processor --extract NAME [-o file] input.zip
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/martinf08/batch-image-processor/internal/pipeline"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	var (
		configPath string
		output     string
		verbose    bool
		list       bool
		extract    string
		flags      = defaultConfig()
	)
	fl := pflag.NewFlagSet("batch-image-processor", pflag.ContinueOnError)
	fl.SetOutput(stderr)
	fl.StringVar(&configPath, "config", "", "YAML file of defaults")
	fl.StringVarP(&output, "output", "o", "", "where to write (default: INPUT-square.zip, or stdout for --extract)")
	fl.BoolVarP(&verbose, "verbose", "v", false, "log every entry")
	fl.BoolVar(&list, "list", false, "print the file entries and exit")
	fl.StringVar(&extract, "extract", "", "write one entry's contents and exit")
	flags.addFlags(fl)
	if err := fl.Parse(args); err != nil {
		return err
	}
	if fl.NArg() != 1 {
		fl.Usage()
		return fmt.Errorf("expected exactly one input archive, got %d", fl.NArg())
	}
	input := fl.Arg(0)

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := defaultConfig()
	if configPath != "" {
		if err := loadConfigFile(configPath, &cfg); err != nil {
			return err
		}
	}
	if n, ok, err := maxSideFromEnv(getenv); err != nil {
		return err
	} else if ok {
		cfg.MaxSide = n
	}
	cfg.merge(fl, flags)

	data, release, err := readInput(input)
	if err != nil {
		return err
	}
	defer release()

	a, err := pipeline.Open(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	switch {
	case list:
		for _, name := range a.Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	case extract != "":
		b, err := a.Extract(extract)
		if err != nil {
			return err
		}
		if output == "" {
			_, err = stdout.Write(b)
			return err
		}
		return os.WriteFile(output, b, 0o644)
	}

	opts, err := cfg.options()
	if err != nil {
		return err
	}
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "-square.zip"
	}
	return transform(a, opts, output, log)
}

func transform(a *pipeline.Archive, opts pipeline.Options, output string, log *slog.Logger) error {
	opts.OnProgress = func(p pipeline.Progress) {
		log.Debug("entryDone", "index", p.Index, "processed", p.Processed, "total", p.Total)
	}
	o, err := pipeline.New(opts, log)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go reportProgress(o, log, done)
	t := time.Now()
	res, err := a.Transform(o)
	close(done)
	if res == nil {
		return err
	}
	runErr := err

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if _, err := res.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("archiveWritten", "path", output, "entries", res.Report.Written,
		"duration", time.Since(t).Truncate(time.Millisecond).String())
	return runErr
}

// reportProgress logs the cursor of a long run until done is closed.
func reportProgress(o *pipeline.Orchestrator, log *slog.Logger, done <-chan struct{}) {
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-done:
			return
		case <-tick.C:
			p := o.Progress()
			log.Info("transformProgress", "index", p.Index, "processed", p.Processed, "total", p.Total)
		}
	}
}
