package omr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduscan/markscan/internal/align"
	"github.com/eduscan/markscan/internal/extract"
	"github.com/eduscan/markscan/internal/identity"
	"github.com/eduscan/markscan/internal/ingest"
	"github.com/eduscan/markscan/internal/score"
	"github.com/eduscan/markscan/internal/template"
)

// Config holds configuration for the OMR pipeline and its stages.
type Config struct {
	Ingest ingest.Config
	Align  align.Config
	Score  score.Config
	// TemplateDir optionally holds additional form template YAML files.
	TemplateDir string
}

// DefaultConfig returns a pipeline config with stage defaults.
func DefaultConfig() Config {
	return Config{
		Ingest: ingest.DefaultConfig(),
		Align:  align.DefaultConfig(),
		Score:  score.DefaultConfig(),
	}
}

// Pipeline runs ingest, alignment, extraction, scoring and identity
// resolution for single scans.
type Pipeline struct {
	cfg      Config
	registry *template.Registry
	resolver *identity.Resolver
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
	dir identity.Directory
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithTemplateDir sets the directory holding additional form templates.
func (b *Builder) WithTemplateDir(dir string) *Builder {
	if dir != "" {
		b.cfg.TemplateDir = dir
	}
	return b
}

// WithDirectory sets the roster directory used for identity resolution.
func (b *Builder) WithDirectory(dir identity.Directory) *Builder {
	b.dir = dir
	return b
}

// WithAcceptThreshold overrides the confidence acceptance threshold.
func (b *Builder) WithAcceptThreshold(t float64) *Builder {
	if t > 0 {
		b.cfg.Score.AcceptThreshold = t
	}
	return b
}

// WithMinResolution overrides the minimum accepted scan dimensions.
func (b *Builder) WithMinResolution(w, h int) *Builder {
	if w > 0 {
		b.cfg.Ingest.MinWidth = w
	}
	if h > 0 {
		b.cfg.Ingest.MinHeight = h
	}
	return b
}

// Build validates the configuration and assembles the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.dir == nil {
		return nil, errors.New("pipeline requires a roster directory")
	}
	if b.cfg.Score.StudentNumberWeight < b.cfg.Score.AnswersWeight {
		return nil, errors.New("student number weight must not be below answers weight")
	}
	reg := template.NewRegistry()
	if b.cfg.TemplateDir != "" {
		if err := reg.LoadDir(b.cfg.TemplateDir); err != nil {
			return nil, fmt.Errorf("loading templates: %w", err)
		}
	}
	return &Pipeline{
		cfg:      b.cfg,
		registry: reg,
		resolver: identity.NewResolver(b.dir),
	}, nil
}

// Templates exposes the registry, e.g. for the form generator and server.
func (p *Pipeline) Templates() *template.Registry { return p.registry }

// Process runs the full pipeline for one scan.
//
// A non-nil error is returned only for conditions under which no
// interpretable result exists: unreadable images, unknown form types, or
// context cancellation. All softer shortfalls (alignment, ambiguous fields,
// unresolved identity, low confidence) are reported inside the returned
// Result with Success=false so reviewers keep the partial data.
func (p *Pipeline) Process(ctx context.Context, imagePath, formType string) (*Result, error) {
	start := time.Now()

	tpl, err := p.registry.Get(formType)
	if err != nil {
		return nil, err
	}

	raster, err := ingest.Load(imagePath, p.cfg.Ingest)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{ImagePath: imagePath}

	tr, err := align.Detect(raster, tpl, p.cfg.Align)
	if err != nil {
		if errors.Is(err, align.ErrAlignmentNotFound) {
			result.Error = ReasonAlignmentNotFound
			result.Processing.TotalNs = time.Since(start).Nanoseconds()
			slog.Info("alignment failed", "image", imagePath, "form_type", formType, "err", err)
			return result, nil
		}
		return nil, err
	}
	result.AlignmentFound = true
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sheet := extract.Read(raster, tr, tpl)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores := score.Compute(sheet, p.cfg.Score)

	result.Subjects = make([]string, 0, len(sheet.Subjects))
	result.Answers = make(map[string][]string, len(sheet.Subjects))
	for _, s := range sheet.Subjects {
		result.Subjects = append(result.Subjects, s.Subject)
		result.Answers[s.Subject] = s.Answers
	}
	result.StudentNumberConfidence = scores.StudentNumber
	result.AnswersConfidence = scores.Answers
	result.ConfidenceScore = scores.Overall

	res, rerr := p.resolver.Resolve(ctx, sheet.Digits)
	// A deadline that expired during the late stages must surface as a
	// processing failure, not as a normally completed result.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.StudentNumberDetected = res.Number
	result.StudentID = res.StudentID
	result.StudentName = res.StudentName

	switch {
	case rerr != nil:
		result.Error = rerr.Error()
	case !p.cfg.Score.Accepts(scores.Overall):
		result.Error = ReasonLowConfidence
	default:
		result.Success = true
	}

	result.Processing.TotalNs = time.Since(start).Nanoseconds()
	slog.Debug("scan processed",
		"image", imagePath,
		"form_type", formType,
		"success", result.Success,
		"confidence", scores.Overall,
		"marks_found", tr.MarksFound)

	return result, nil
}
