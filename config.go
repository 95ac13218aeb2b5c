// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/martinf08/batch-image-processor/internal/canvas"
	"github.com/martinf08/batch-image-processor/internal/pipeline"
)

// config holds every tunable. Precedence, lowest first:
// built-in defaults, the --config file, BIPMAXSIDE, explicit flags.
type config struct {
	Mode    string   `yaml:"mode"`
	Policy  string   `yaml:"policy"`
	Case    string   `yaml:"case"`
	OnError string   `yaml:"on_error"`
	MaxSide int      `yaml:"max_side"`
	Exclude []string `yaml:"exclude"`
	Cache   int      `yaml:"cache"`
}

func defaultConfig() config {
	return config{
		Mode:    "transform",
		Policy:  "pad",
		Case:    "lower",
		OnError: "abort",
		Cache:   256,
	}
}

func (c *config) addFlags(fl *pflag.FlagSet) {
	fl.StringVar(&c.Mode, "mode", c.Mode, "transform or rename")
	fl.StringVar(&c.Policy, "policy", c.Policy, "pad (white margins) or crop (fill the square)")
	fl.StringVar(&c.Case, "case", c.Case, "lower or upper, applied to every entry name")
	fl.StringVar(&c.OnError, "on-error", c.OnError, "abort at the first bad entry, or continue and report")
	fl.IntVar(&c.MaxSide, "max-side", c.MaxSide, "shrink images whose longer side exceeds this (0 = no limit)")
	fl.StringArrayVar(&c.Exclude, "exclude", c.Exclude, "skip entries matching this glob (repeatable)")
	fl.IntVar(&c.Cache, "cache", c.Cache, "encoded results remembered for duplicate images (0 = off)")
}

// merge copies into c the flags the user actually set.
func (c *config) merge(fl *pflag.FlagSet, flags config) {
	for name, apply := range map[string]func(){
		"mode":     func() { c.Mode = flags.Mode },
		"policy":   func() { c.Policy = flags.Policy },
		"case":     func() { c.Case = flags.Case },
		"on-error": func() { c.OnError = flags.OnError },
		"max-side": func() { c.MaxSide = flags.MaxSide },
		"exclude":  func() { c.Exclude = flags.Exclude },
		"cache":    func() { c.Cache = flags.Cache },
	} {
		if fl.Changed(name) {
			apply()
		}
	}
}

func loadConfigFile(path string, c *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// maxSideFromEnv reads BIPMAXSIDE, a positive whole number of pixels.
func maxSideFromEnv(getenv func(string) string) (int, bool, error) {
	e := getenv("BIPMAXSIDE")
	if e == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(e)
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, false, fmt.Errorf("malformed BIPMAXSIDE environment variable, should be a number of pixels: %s", e)
	}
	return n, true, nil
}

func (c config) options() (pipeline.Options, error) {
	var opts pipeline.Options
	var err error
	if opts.Mode, err = pipeline.ParseMode(c.Mode); err != nil {
		return opts, err
	}
	if opts.Policy, err = canvas.ParsePolicy(c.Policy); err != nil {
		return opts, err
	}
	if opts.Case, err = pipeline.ParseCase(c.Case); err != nil {
		return opts, err
	}
	if opts.Failure, err = pipeline.ParseFailureMode(c.OnError); err != nil {
		return opts, err
	}
	opts.MaxSide = c.MaxSide
	opts.Exclude = c.Exclude
	opts.CacheSize = c.Cache
	return opts, nil
}
