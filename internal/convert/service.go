// Package convert runs the conversion pipeline from a collection file to a
// DevWeb script folder.
package convert

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/bundle"
	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
	"github.com/unkn0wn-root/devwebgen/internal/errdef"
	"github.com/unkn0wn-root/devwebgen/internal/params"
	"github.com/unkn0wn-root/devwebgen/internal/report"
	"github.com/unkn0wn-root/devwebgen/internal/scriptmine"
	"github.com/unkn0wn-root/devwebgen/internal/scripts"
	"github.com/unkn0wn-root/devwebgen/internal/scriptwriter"
	"github.com/unkn0wn-root/devwebgen/internal/telemetry"
)

const (
	errReaderNotConfigured    = "convert: reader not configured"
	errGeneratorNotConfigured = "convert: generator not configured"
	errWriterNotConfigured    = "convert: writer not configured"
)

type Service struct {
	Reader    Reader
	Generator Generator
	Writer    Writer
	Logger    *zap.Logger
	Telemetry telemetry.Instrumenter
}

// NewService wires the disk reader and writer with a devweb generator.
func NewService(log *zap.Logger, inst telemetry.Instrumenter) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Reader:    FileReader{},
		Generator: devweb.NewGenerator(log.Named("devweb")),
		Writer:    DiskWriter{},
		Logger:    log,
		Telemetry: inst,
	}
}

type Request struct {
	Collection  string
	Environment string
	OutputDir   string
	Options     devweb.Options
	// Classification drives variable resolution from the classifier; when
	// off, parameters come from the value heuristics and declared values
	// are inlined.
	Classification bool
	Scenario       bundle.Scenario
	SDKPath        string
	Overwrite      bool
}

type Result struct {
	Collection  *collection.Collection
	Environment []collection.Variable
	Script      *devweb.Script
	Bundle      *bundle.Bundle
	Report      *report.Report
	Written     []string
	Warnings    []diag.Warning
}

// Run converts and writes the script folder.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Writer == nil {
		return nil, errors.New(errWriterNotConfigured)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return nil, errdef.New(errdef.CodeConfig, "convert: output directory is empty")
	}
	res, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	err = s.stage(ctx, "write", res.Collection, nil, func(ctx context.Context) (int, error) {
		written, err := s.Writer.WriteBundle(ctx, req.OutputDir, res.Bundle.Files,
			scriptwriter.Options{Overwrite: req.Overwrite})
		res.Written = written
		return len(written), errdef.Wrap(errdef.CodeFilesystem, err, "write %s", req.OutputDir)
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// Analyze runs every stage except the write. Stages run in order and ctx
// is checked between them; request level problems become warnings.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Reader == nil {
		return nil, errors.New(errReaderNotConfigured)
	}
	if s.Generator == nil {
		return nil, errors.New(errGeneratorNotConfigured)
	}
	log := s.logger()
	warn := diag.NewCollector(log)
	p := &pipeline{req: req, warn: warn, res: &Result{}}

	err := s.stage(ctx, diag.StageLoad, nil, warn, func(ctx context.Context) (int, error) {
		return p.load(ctx, s.Reader)
	})
	if err != nil {
		return nil, err
	}
	coll := p.res.Collection
	for _, st := range []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{diag.StageScripts, p.scripts},
		{diag.StageAuth, p.auth},
		{diag.StageCorrelate, p.correlate},
		{"classify", p.classify},
		{diag.StageGenerate, func(ctx context.Context) (int, error) { return p.generate(ctx, s.Generator) }},
		{"bundle", p.bundle},
	} {
		if err := s.stage(ctx, st.name, coll, warn, st.fn); err != nil {
			return nil, err
		}
	}

	p.res.Warnings = append(warn.List(), p.res.Script.Warnings...)
	p.res.Report = report.Build(report.Input{
		Collection: coll,
		Rules:      p.rules,
		Parameters: p.params,
		Auth:       p.configs,
		Scripts:    p.converted,
		Classes:    p.classes,
		SideFiles:  p.res.Script.SideFiles,
		Warnings:   p.res.Warnings,
	})
	log.Info("collection analysed",
		zap.String("collection", coll.Name),
		zap.Int("requests", len(coll.Requests)),
		zap.Int("correlations", len(p.rules)),
		zap.Int("warnings", len(p.res.Warnings)),
	)
	return p.res, nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) stage(
	ctx context.Context,
	name string,
	coll *collection.Collection,
	warn *diag.Collector,
	fn func(context.Context) (int, error),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	inst := s.Telemetry
	if inst == nil {
		inst = telemetry.Noop()
	}
	start := telemetry.StageStart{Stage: name}
	if coll != nil {
		start.Collection = coll.Name
		start.Requests = len(coll.Requests)
	}
	before := warn.Len()
	ctx, span := inst.Start(ctx, start)
	items, err := fn(ctx)
	span.End(telemetry.StageResult{Err: err, Items: items, Warnings: warn.Len() - before})
	if err != nil {
		s.logger().Error("stage failed", zap.String("stage", name), zap.Error(err))
		return err
	}
	s.logger().Debug("stage done", zap.String("stage", name), zap.Int("items", items))
	return nil
}

// pipeline carries the state passed between stages.
type pipeline struct {
	req       Request
	warn      *diag.Collector
	res       *Result
	tests     []scriptmine.Result
	pres      []scriptmine.Result
	converted []devweb.Converted
	configs   []auth.Config
	effective []*auth.Config
	rules     []correlation.Rule
	classes   *classify.Result
	params    []params.Parameter
	columns   []params.Column
}

func (p *pipeline) load(ctx context.Context, r Reader) (int, error) {
	coll, err := r.Load(ctx, p.req.Collection)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.warn.AddAll(diag.StageLoad, "", coll.Warnings)
	if path := strings.TrimSpace(p.req.Environment); path != "" {
		env, err := r.LoadEnvironment(path)
		if err != nil {
			return 0, err
		}
		p.res.Environment = env
	}
	p.res.Collection = coll
	return len(coll.Requests), nil
}

func (p *pipeline) scripts(ctx context.Context) (int, error) {
	reqs := p.res.Collection.Requests
	tests := make([]string, len(reqs))
	pres := make([]string, len(reqs))
	for i, r := range reqs {
		tests[i] = r.TestScript
		pres[i] = r.PreRequestScript
	}
	var err error
	if p.tests, err = scriptmine.MineAll(ctx, tests); err != nil {
		return 0, err
	}
	if p.pres, err = scriptmine.MineAll(ctx, pres); err != nil {
		return 0, err
	}
	p.converted = make([]devweb.Converted, len(reqs))
	if !p.req.Options.CustomScripts {
		return 0, nil
	}
	n := 0
	for i, r := range reqs {
		c := devweb.Converted{
			Pre:  scripts.Convert(r.PreRequestScript, scripts.KindPreRequest),
			Test: scripts.Convert(r.TestScript, scripts.KindTest),
		}
		if c.Pre != nil || c.Test != nil {
			n++
		}
		p.converted[i] = c
	}
	return n, nil
}

func (p *pipeline) auth(context.Context) (int, error) {
	coll := p.res.Collection
	configs, warnings := auth.Collect(coll)
	p.warn.AddAll(diag.StageAuth, "", warnings)
	p.configs = configs
	p.effective = make([]*auth.Config, len(coll.Requests))
	for _, cfg := range configs {
		if !cfg.Type.Known() {
			p.warn.Addf(diag.StageAuth, "", "%s: auth type %q is emitted as a comment; configure it by hand", cfg.Name, cfg.Type)
		}
	}
	if !p.req.Options.Authentication {
		return len(configs), nil
	}
	for i, r := range coll.Requests {
		p.effective[i] = auth.For(r, configs)
	}
	return len(configs), nil
}

func (p *pipeline) correlate(context.Context) (int, error) {
	if !p.req.Options.Correlation {
		return 0, nil
	}
	reqs := p.res.Collection.Requests
	p.rules, _ = correlation.DetectMined(reqs, correlation.Mined{
		Tests:       p.tests,
		PreRequests: p.pres,
		Auth:        p.effective,
	})
	p.warn.AddAll(diag.StageCorrelate, "", correlation.CheckExamples(p.rules, reqs))
	return len(p.rules), nil
}

func (p *pipeline) classify(context.Context) (int, error) {
	coll := p.res.Collection
	p.params = params.Extract(coll, p.res.Environment)
	if !p.req.Options.Parameterization {
		return 0, nil
	}
	if !p.req.Classification {
		p.columns = params.Columns(p.params)
		return len(p.columns), nil
	}
	p.classes = classify.Classify(classify.Input{
		Collection:  coll,
		Environment: p.res.Environment,
		Rules:       p.rules,
	})
	for _, cp := range p.classes.Parameters() {
		p.columns = append(p.columns, params.Column{Name: cp.Name, Value: cp.Value, NextValue: cp.NextValue})
	}
	return len(p.columns), nil
}

func (p *pipeline) generate(ctx context.Context, g Generator) (int, error) {
	script, err := g.Generate(ctx, devweb.Input{
		Collection:  p.res.Collection,
		Environment: p.res.Environment,
		Rules:       p.rules,
		Classes:     p.classes,
		Auth:        p.configs,
		Scripts:     p.converted,
		Parameters:  len(p.columns),
		Options:     p.req.Options,
	})
	if err != nil {
		return 0, err
	}
	p.res.Script = script
	return len(script.SideFiles), nil
}

func (p *pipeline) bundle(context.Context) (int, error) {
	b, err := bundle.Build(bundle.Input{
		Script:   p.res.Script,
		Columns:  p.columns,
		Scenario: p.req.Scenario,
		SDKPath:  p.req.SDKPath,
	})
	if err != nil {
		return 0, err
	}
	p.warn.AddAll(diag.StageGenerate, "", b.Warnings)
	p.res.Bundle = b
	return len(b.Files), nil
}
