package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/auvmap/analyzer/pkg/core"
	"github.com/spf13/viper"
)

// options are the command line settings. Flags left empty fall back to
// the configuration file.
type options struct {
	ConfigDir string
	Root      string
	OutDir    string
	Mode      string
	HTML      bool
	PNG       bool
	Sessions  []string
}

func parseArgs(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: %s [flags] <session> [session...]\n\n", AppName)
		fmt.Fprintln(output, "One session prints its own statistics; more are compared against the first.")
		fmt.Fprintln(output)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ConfigDir, "config", ".", "directory holding auv_analyzer.cfg.json and .env")
	fs.StringVar(&opts.Root, "root", "", "folder containing the session folders (default sessionsRoot)")
	fs.StringVar(&opts.OutDir, "out", "", "output directory for reports (default outputDir)")
	fs.StringVar(&opts.Mode, "mode", "", "alignment mode: time, distance or spatial (default analysis.alignMode)")
	fs.BoolVar(&opts.HTML, "html", false, "write an HTML chart page")
	fs.BoolVar(&opts.PNG, "png", false, "write a PNG error plot per comparison")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.Sessions = fs.Args()
	if len(opts.Sessions) == 0 {
		fs.Usage()
		return opts, errors.New("at least one session id is required")
	}
	seen := make(map[string]bool, len(opts.Sessions))
	for _, id := range opts.Sessions {
		if seen[id] {
			return opts, fmt.Errorf("session %s given twice", id)
		}
		seen[id] = true
	}

	switch core.AlignmentBasis(opts.Mode) {
	case "", core.BasisTime, core.BasisDistance, core.BasisSpatial:
	default:
		return opts, fmt.Errorf("unknown mode %q: want time, distance or spatial", opts.Mode)
	}
	return opts, nil
}

// apply overrides configuration values with the flags that were set.
func (o options) apply() {
	if o.Root != "" {
		viper.Set("sessionsRoot", o.Root)
	}
	if o.OutDir != "" {
		viper.Set("outputDir", o.OutDir)
	}
	if o.Mode != "" {
		viper.Set("analysis.alignMode", o.Mode)
	}
}
