package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apple/pkl-go/pkl"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

// Pkl synthesizes a single stack by evaluating a Pkl module whose rendered
// output is a Terraform JSON document. The document is also written to the
// synth output directory so the local backend can run against it.
type Pkl struct {
	entryPoint string
	outdir     string
	properties map[string]string
}

func NewPkl(entryPoint, outdir string, properties map[string]string) *Pkl {
	return &Pkl{entryPoint: entryPoint, outdir: outdir, properties: properties}
}

func (p *Pkl) Synthesize(ctx context.Context) ([]ir.Stack, error) {
	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(p.properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range p.properties {
				o.Properties[k] = v
			}
		})
	}

	evaluator, err := pkl.NewEvaluator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	doc, err := evaluator.EvaluateOutputText(ctx, pkl.FileSource(p.entryPoint))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", p.entryPoint, err)
	}

	name := strings.TrimSuffix(filepath.Base(p.entryPoint), filepath.Ext(p.entryPoint))
	stackDir := StackDir(p.outdir, name)
	if err := os.MkdirAll(stackDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stack directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(stackDir, StackFileName), []byte(doc), 0644); err != nil {
		return nil, fmt.Errorf("failed to write stack document: %w", err)
	}

	return []ir.Stack{{Name: name, JSON: doc}}, nil
}
