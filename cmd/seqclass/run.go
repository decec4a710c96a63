package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
	"github.com/born-ml/seqclass/internal/cnn"
	"github.com/born-ml/seqclass/internal/config"
	"github.com/born-ml/seqclass/internal/device"
	"github.com/born-ml/seqclass/internal/featurize"
	"github.com/born-ml/seqclass/internal/hrnn"
	"github.com/born-ml/seqclass/internal/layers"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// model is what the commands need from either classifier.
type model[B tensor.Backend] interface {
	NamedParameters() []layers.Named[B]
	CountParams() (total, trainable int)
	Eval()
	String() string
}

// run picks the backend for the configured device and executes j on it.
func run(j *job) error {
	dev, err := j.cfg.ComputeDevice()
	if err != nil {
		return err
	}
	if err := device.Check(dev); err != nil {
		return err
	}
	klog.V(1).Infof("running %s on %s", j.command, dev)

	switch dev {
	case tensor.CPU:
		return execute(j, autodiff.New(cpu.New()))
	case device.WebGPU:
		return withWebGPU(j)
	default:
		return errors.Errorf("no backend for device %s", dev)
	}
}

// execute builds the configured model on backend and runs the command.
func execute[B tensor.Backend](j *job, backend B) error {
	enc, err := j.cfg.Encoder()
	if err != nil {
		return err
	}

	switch j.cfg.Model {
	case config.ModelCNN:
		cfg, err := j.cfg.CNNConfig()
		if err != nil {
			return err
		}
		m, err := cnn.New(cfg, backend)
		if err != nil {
			return err
		}
		if j.command == "summary" {
			return printSummary[B](j.out, "cnn", m)
		}
		x, err := featurize.Sequence(j.text, enc, j.cfg.Featurize.Length, backend)
		if err != nil {
			return err
		}
		m.Eval()
		return printScores(j.out, m.Forward(x).Data())

	case config.ModelHRNN:
		cfg, err := j.cfg.HRNNConfig()
		if err != nil {
			return err
		}
		if cfg.BatchSize != 1 {
			return errors.Errorf("score runs one text at a time, hrnn.batch_size must be 1, got %d", cfg.BatchSize)
		}
		m, err := hrnn.New(cfg, backend)
		if err != nil {
			return err
		}
		if cfg.Cell == layers.LSTM && cfg.Bias {
			if err := m.InitForgetBias(); err != nil {
				return err
			}
		}
		if j.command == "summary" {
			return printSummary[B](j.out, "hrnn", m)
		}
		seg, err := j.cfg.Segmenter()
		if err != nil {
			return err
		}
		segments, err := seg.Segment(j.text)
		if err != nil {
			return err
		}
		words, err := featurize.Words(segments, enc, backend)
		if err != nil {
			return err
		}
		klog.V(1).Infof("hrnn: %d words", len(words))
		m.Eval()
		m.ResetHidden(backend)
		return printScores(j.out, m.Forward(words).Data())

	default:
		return errors.Errorf("unknown model %q", j.cfg.Model)
	}
}

func printSummary[B tensor.Backend](w io.Writer, name string, m model[B]) error {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	numberStyle := cellStyle.Align(lipgloss.Right)
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return headerStyle
			case col == 2:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		Headers("Parameter", "Shape", "Elements")

	for _, n := range m.NamedParameters() {
		t := n.Param.Tensor()
		table.Row(n.Path, fmt.Sprint(t.Shape()), humanize.Comma(int64(t.NumElements())))
	}

	total, trainable := m.CountParams()
	_, err := fmt.Fprintf(w, "%s\n%s\n%s: %s parameters (%s trainable)\n",
		m, table.Render(), name, humanize.Comma(int64(total)), humanize.Comma(int64(trainable)))
	return err
}

func printScores(w io.Writer, scores []float32) error {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = fmt.Sprintf("%.6f", s)
	}
	_, err := fmt.Fprintf(w, "score: %s\n", strings.Join(parts, " "))
	return err
}
