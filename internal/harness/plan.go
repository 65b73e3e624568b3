package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/reprojcheck/internal/crs"
)

//go:embed plan.cue
var planSchema string

// Plan describes a run in YAML:
//
//	name: utm31-shared
//	description: "Shared handle, 4 workers"
//	source: EPSG:4326
//	target: EPSG:32631
//	samples: 1024
//	threads: 4
//	iterations: 50000
//	per_worker_transform: false
//	sweep: { origin_x: 2, origin_y: 49, extent: 1 }
//
// Only name is required. The file is validated against an embedded CUE
// schema, which also supplies defaults and rejects unknown fields.
type Plan struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	Source             string `json:"source"`
	Target             string `json:"target"`
	Samples            int    `json:"samples"`
	Threads            int    `json:"threads"`
	Iterations         int    `json:"iterations"`
	PerWorkerTransform bool   `json:"per_worker_transform"`
	Sweep              Sweep  `json:"sweep"`
}

// PlanError is a schema violation, with a source position when CUE
// provides one.
type PlanError struct {
	Message string
	Pos     token.Pos
}

func (e *PlanError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// LoadPlan reads and validates a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes YAML plan data, applies schema defaults and validates it.
func ParsePlan(data []byte) (*Plan, error) {
	var raw map[string]any
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty plan")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(planSchema, cue.Filename("plan.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile plan schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Plan")).Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", formatCUEError(err))
	}

	var plan Plan
	if err := value.Decode(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", formatCUEError(err))
	}
	return &plan, nil
}

// Config resolves the plan's CRS identifiers and returns a validated Config.
func (p *Plan) Config() (Config, error) {
	src, err := crs.Parse(p.Source)
	if err != nil {
		return Config{}, &ConfigError{Field: "source", Message: err.Error()}
	}
	dst, err := crs.Parse(p.Target)
	if err != nil {
		return Config{}, &ConfigError{Field: "target", Message: err.Error()}
	}
	cfg := Config{
		Threads:            p.Threads,
		Iterations:         p.Iterations,
		PerWorkerTransform: p.PerWorkerTransform,
		Source:             src,
		Target:             dst,
		Samples:            p.Samples,
		Sweep:              p.Sweep,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	msg := first.Error()
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &PlanError{Message: msg, Pos: positions[0]}
	}
	return &PlanError{Message: msg}
}
