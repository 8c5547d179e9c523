// Command georoute evaluates scene scripts and plans obstacle-free paths
// through their node graphs.
//
//	georoute plan scene.lisp
//	georoute bounds --json scene.lisp
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/georoute/pkg/config"
	"github.com/chazu/georoute/pkg/console"
)

type options struct {
	configPath string
	verbosity  string
	json       bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "georoute:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "georoute",
		Short:         "Plan paths through scene graphs around 3D obstacles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (.toml, .yaml)")
	root.PersistentFlags().StringVarP(&opts.verbosity, "verbosity", "v", "", "log verbosity: off, fatal, error, warning, info, debug")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print results as JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "plan <scene>",
			Short: "Answer every query of a scene script",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, source, err := setup(opts, args[0], cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				res := app.Plan(source)
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				printPlan(cmd.OutOrStdout(), res)
				return failed(res.Errors)
			},
		},
		&cobra.Command{
			Use:   "bounds <scene>",
			Short: "Print the extent of a scene's nodes and obstacles",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, source, err := setup(opts, args[0], cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				res := app.SceneBounds(source)
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				printBounds(cmd.OutOrStdout(), res)
				return failed(res.Errors)
			},
		},
	)
	return root
}

// setup loads configuration and the scene file, logging to stderr.
func setup(opts options, scenePath string, stderr io.Writer) (*App, string, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, "", err
		}
	}
	if opts.verbosity != "" {
		cfg.Console.Verbosity = opts.verbosity
	}
	level, err := console.ParseVerbosity(cfg.Console.Verbosity)
	if err != nil {
		return nil, "", err
	}
	log := console.New(stderr, level)

	source, err := os.ReadFile(scenePath)
	if err != nil {
		return nil, "", fmt.Errorf("read scene: %w", err)
	}
	log.Debugf("georoute: loaded %s (%d bytes)", scenePath, len(source))
	return NewApp(cfg, log), string(source), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func failed(errs []EvalErrorData) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d error(s)", len(errs))
}

func printErrors(w io.Writer, errs, warnings []EvalErrorData) {
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(w, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintf(w, "error: %s\n", e.Message)
		}
	}
	for _, e := range warnings {
		fmt.Fprintf(w, "warning: %s\n", e.Message)
	}
}

func printPlan(w io.Writer, res PlanResult) {
	printErrors(w, res.Errors, res.Warnings)
	for i, p := range res.Paths {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("query %d", i)
		}
		if !p.Found {
			fmt.Fprintf(w, "%s: no path from %v to %v\n", name, p.Start, p.Goal)
			continue
		}
		fmt.Fprintf(w, "%s: %d waypoints, length %.6g\n", name, len(p.Waypoints), p.Length)
		for _, wp := range p.Waypoints {
			fmt.Fprintf(w, "  %g %g %g\n", wp[0], wp[1], wp[2])
		}
	}
}

func printBounds(w io.Writer, res SceneBoundsResult) {
	printErrors(w, res.Errors, nil)
	line := func(b BoundsData) {
		if b.Empty {
			fmt.Fprintf(w, "%s: empty\n", b.Name)
			return
		}
		fmt.Fprintf(w, "%s: min %v max %v center %v\n", b.Name, b.Min, b.Max, b.Center)
	}
	if len(res.Errors) > 0 {
		return
	}
	line(res.Nodes)
	for i, b := range res.Obstacles {
		if b.Name == "" {
			b.Name = fmt.Sprintf("obstacle %d", i)
		}
		line(b)
	}
}
