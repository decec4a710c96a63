// Package main provides the seqclass command: inspect and smoke-test the
// sequence classifiers described by a YAML configuration.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/seqclass/internal/config"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const version = "v0.1.0"

func usage(w io.Writer) {
	fmt.Fprintf(w, "seqclass %s - sequence classifiers on Born\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                         Show version")
	fmt.Fprintln(w, "  summary -config FILE            Print the model layout and parameter counts")
	fmt.Fprintln(w, "  score   -config FILE -text TXT  Score text with a freshly initialized model")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "version":
		fmt.Printf("seqclass %s\n", version)
	case "summary", "score":
		j, err := parseJob(cmd, os.Args[2:])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		err = run(j)
		klog.Flush()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// job is one summary or score invocation.
type job struct {
	command string
	cfg     *config.File
	text    string
	out     io.Writer
}

func parseJob(command string, args []string) (*job, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	klog.InitFlags(fs)
	configPath := fs.String("config", "", "YAML configuration file (defaults apply when empty)")
	text := fs.String("text", "", "text to score")
	model := fs.String("model", "", "override the configured model (cnn or hrnn)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return nil, err
	}
	if *model != "" {
		cfg.Model = *model
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if command == "score" && *text == "" {
		return nil, errors.New("score needs -text")
	}
	return &job{command: command, cfg: cfg, text: *text, out: os.Stdout}, nil
}
