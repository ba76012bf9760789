// Package devweb renders a LoadRunner DevWeb main.js from an analysed
// collection.
package devweb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
	"github.com/unkn0wn-root/devwebgen/internal/errdef"
	"github.com/unkn0wn-root/devwebgen/internal/payload"
	"github.com/unkn0wn-root/devwebgen/internal/scripts"
	"github.com/unkn0wn-root/devwebgen/internal/vars"
)

type Options struct {
	Transactions     bool
	Correlation      bool
	Parameterization bool
	Authentication   bool
	CustomScripts    bool
	Comments         bool
	ThinkTime        int
	LogLevel         string
	// Timestamp is written into the header; empty uses the current time.
	Timestamp        string
	PayloadMinLen    int
}

func DefaultOptions() Options {
	return Options{
		Transactions:     true,
		Correlation:      true,
		Parameterization: true,
		Authentication:   true,
		CustomScripts:    true,
		Comments:         true,
		ThinkTime:        1,
		LogLevel:         "info",
		PayloadMinLen:    payload.DefaultMinLen,
	}
}

// Converted holds the converted scripts of one request.
type Converted struct {
	Pre  *scripts.Converted
	Test *scripts.Converted
}

// Input is the analysed collection. Classes nil means classification was
// turned off and declared values are inlined. Scripts is indexed like
// Collection.Requests; when nil the scripts are converted here.
type Input struct {
	Collection  *collection.Collection
	Environment []collection.Variable
	Rules       []correlation.Rule
	Classes     *classify.Result
	Auth        []auth.Config
	Scripts     []Converted
	Parameters  int
	Options     Options
}

type Transaction struct {
	Var    string `json:"var"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

type Script struct {
	Text         string
	SideFiles    []payload.File
	Transactions []Transaction
	Warnings     []diag.Warning
}

type Generator struct {
	log *zap.Logger
}

func NewGenerator(log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{log: log}
}

// Generate renders main.js. It only fails when ctx is done or the input has
// no collection; everything request level degrades to warnings.
func (g *Generator) Generate(ctx context.Context, in Input) (*Script, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if in.Collection == nil {
		return nil, errdef.New(errdef.CodeRender, "generate: no collection")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := newRun(g.log, in)
	text, err := r.script(ctx)
	if err != nil {
		return nil, err
	}
	if err := Validate(text); err != nil {
		r.warn.Add(diag.StageValidate, "", err.Error())
	}
	g.log.Debug("script generated",
		zap.Int("requests", len(in.Collection.Requests)),
		zap.Int("sideFiles", r.store.Len()),
		zap.Int("warnings", r.warn.Len()),
	)
	return &Script{
		Text:         text,
		SideFiles:    r.store.Files(),
		Transactions: r.transactions,
		Warnings:     r.warn.List(),
	}, nil
}

type run struct {
	in           Input
	opts         Options
	res          *resolver
	store        *payload.Store
	warn         *diag.Collector
	idents       *identifiers
	names        []string
	request      string
	nextID       int
	transactions []Transaction
	converted    []Converted
}

func newRun(log *zap.Logger, in Input) *run {
	r := &run{
		in:     in,
		opts:   in.Options,
		store:  payload.NewStore(),
		warn:   diag.NewCollector(log),
		idents: newIdentifiers(),
	}
	if r.opts.LogLevel == "" {
		r.opts.LogLevel = "info"
	}
	static := vars.NewResolver(
		vars.NewMapProvider("environment", enabled(in.Environment)),
		vars.NewMapProvider("collection", enabled(in.Collection.Variables)),
	)
	dynamic := make(map[string]bool)
	for _, rule := range in.Rules {
		dynamic[rule.Name] = true
	}
	r.res = &resolver{
		classes: in.Classes,
		static:  static,
		dynamic: dynamic,
		warn: func(msg string) {
			r.warn.Add(diag.StageGenerate, r.request, msg)
		},
	}
	reqs := in.Collection.Requests
	r.names = make([]string, len(reqs))
	for i, req := range reqs {
		r.names[i] = r.idents.next(req.Name)
	}
	r.converted = in.Scripts
	if r.converted == nil && r.opts.CustomScripts {
		r.converted = make([]Converted, len(reqs))
		for i, req := range reqs {
			r.converted[i] = Converted{
				Pre:  scripts.Convert(req.PreRequestScript, scripts.KindPreRequest),
				Test: scripts.Convert(req.TestScript, scripts.KindTest),
			}
		}
	}
	return r
}

func (r *run) scriptsFor(i int) Converted {
	if !r.opts.CustomScripts || i >= len(r.converted) {
		return Converted{}
	}
	return r.converted[i]
}

func (r *run) script(ctx context.Context) (string, error) {
	// the action renders first so initialize knows the payload side files
	action, err := r.action(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(r.header())
	b.WriteString("\n")
	b.WriteString(r.initialize())
	b.WriteString("\n\n")
	b.WriteString(action)
	b.WriteString("\n\n")
	b.WriteString(finalize)
	b.WriteString("\n")
	return b.String(), nil
}

func (r *run) header() string {
	ts := r.opts.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	name := r.in.Collection.Name
	if name == "" {
		name = "Unknown"
	}
	var b strings.Builder
	b.WriteString("/**\n")
	b.WriteString(" * DevWeb Performance Test Script\n")
	fmt.Fprintf(&b, " * Auto-generated from: %s\n", commentText(name))
	fmt.Fprintf(&b, " * Generated on: %s\n", commentText(ts))
	b.WriteString(" *\n")
	b.WriteString(" * Features enabled:\n")
	fmt.Fprintf(&b, " * - Transactions: %t\n", r.opts.Transactions)
	fmt.Fprintf(&b, " * - Correlation: %t\n", r.opts.Correlation)
	fmt.Fprintf(&b, " * - Parameterization: %t\n", r.opts.Parameterization)
	fmt.Fprintf(&b, " * - Authentication: %t\n", r.opts.Authentication)
	b.WriteString(" *\n")
	b.WriteString(" * Statistics:\n")
	fmt.Fprintf(&b, " * - Total Requests: %d\n", len(r.in.Collection.Requests))
	fmt.Fprintf(&b, " * - Correlations: %d\n", len(r.in.Rules))
	fmt.Fprintf(&b, " * - Parameters: %d\n", r.in.Parameters)
	fmt.Fprintf(&b, " * - Think Time: %ds\n", r.opts.ThinkTime)
	b.WriteString(" */\n")
	return b.String()
}

func (r *run) initialize() string {
	var b strings.Builder
	b.WriteString("load.initialize(\"init\", async function() {\n")
	fmt.Fprintf(&b, "    load.log(\"Initializing Vuser \" + load.config.user.userId, load.LogLevel.%s);\n\n", r.opts.LogLevel)

	b.WriteString("    // Initialize global variables for correlation\n")
	seen := make(map[string]struct{})
	for _, rule := range r.in.Rules {
		if _, ok := seen[rule.Name]; ok {
			continue
		}
		seen[rule.Name] = struct{}{}
		fmt.Fprintf(&b, "    %s = null; // For %s\n", globalMember(rule.Name), rule.Type)
	}
	if len(seen) == 0 {
		b.WriteString("    // No global variables needed\n")
	}

	if files := r.store.Files(); len(files) > 0 {
		b.WriteString("\n    // Large payloads are defined in side files next to main.js:\n")
		for _, f := range files {
			fmt.Fprintf(&b, "    //   %s sets load.global.payload_%s\n", f.Name, f.Hash)
		}
	}

	if r.opts.Authentication && len(r.in.Auth) > 0 {
		b.WriteString("\n    // Authentication Setup\n")
		r.request = ""
		done := make(map[auth.Type]struct{})
		for i := range r.in.Auth {
			cfg := &r.in.Auth[i]
			if _, ok := done[cfg.Type]; ok {
				continue
			}
			done[cfg.Type] = struct{}{}
			b.WriteString(indent(auth.InitSnippet(cfg, r.res.ref), "    "))
		}
	}

	b.WriteString("\n    load.log(\"Initialization complete\", load.LogLevel.info);\n")
	b.WriteString("});")
	return b.String()
}

const defaultHeaders = `    load.WebRequest.defaults.returnBody = false;
    load.WebRequest.defaults.headers = {
        "accept-encoding": "gzip, deflate, br",
        "accept-language": "en-US,en;q=0.9",
        "user-agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
    };
`

const finalize = `load.finalize("finalize", async function() {
    load.log("Finalizing Vuser " + load.config.user.userId, load.LogLevel.info);

    load.log("Finalization complete", load.LogLevel.info);
});`

func (r *run) action(ctx context.Context) (string, error) {
	var b strings.Builder
	b.WriteString("load.action(\"Action\", async function() {\n")
	b.WriteString("    load.log(\"Starting action - Iteration \" + load.config.runtime.iteration, load.LogLevel.info);\n\n")
	b.WriteString("    // Set default request options\n")
	b.WriteString(defaultHeaders)

	var (
		body string
		err  error
	)
	if r.opts.Transactions {
		body, err = r.grouped(ctx)
	} else {
		body, err = r.sequential(ctx)
	}
	if err != nil {
		return "", err
	}
	b.WriteString(body)

	b.WriteString("\n    load.log(\"Action complete\", load.LogLevel.info);\n")
	b.WriteString("});")
	return b.String(), nil
}

func (r *run) sequential(ctx context.Context) (string, error) {
	var b strings.Builder
	reqs := r.in.Collection.Requests
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		b.WriteString(r.requestCode(i, req, ""))
		if i < len(reqs)-1 && r.opts.ThinkTime > 0 {
			fmt.Fprintf(&b, "\n    load.sleep(%d);", r.opts.ThinkTime)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// grouped wraps consecutive requests of one folder in that folder's
// transaction. Each folder declares its transaction once; a folder that
// reappears later starts the same transaction again so request order is
// never changed.
func (r *run) grouped(ctx context.Context) (string, error) {
	reqs := r.in.Collection.Requests
	byFolder := make(map[string]Transaction)
	counts := make(map[string]int)
	for _, req := range reqs {
		folder := req.Folder
		if folder == "" {
			folder = "default"
		}
		if _, ok := byFolder[folder]; ok {
			continue
		}
		n := len(r.transactions) + 1
		short := strings.TrimSpace(folder[strings.LastIndex(folder, "/")+1:])
		if short == "" {
			short = fmt.Sprintf("Transaction_%d", n)
		}
		if c := counts[short]; c > 0 {
			counts[short] = c + 1
			short = fmt.Sprintf("%s_%d", short, c)
		} else {
			counts[short] = 1
		}
		t := Transaction{Var: fmt.Sprintf("TS%02d", n), Name: short, Folder: folder}
		byFolder[folder] = t
		r.transactions = append(r.transactions, t)
	}

	var b strings.Builder
	if len(r.transactions) > 0 {
		b.WriteString("\n    // Transaction declarations\n")
		for _, t := range r.transactions {
			fmt.Fprintf(&b, "    let %s = new load.Transaction(%s);\n", t.Var, jsString(t.Name))
		}
	}

	for start := 0; start < len(reqs); {
		end := start + 1
		for end < len(reqs) && reqs[end].Folder == reqs[start].Folder {
			end++
		}
		folder := reqs[start].Folder
		if folder == "" {
			folder = "default"
		}
		t := byFolder[folder]
		fmt.Fprintf(&b, "\n    // %s - %s\n", t.Var, commentText(folder))
		fmt.Fprintf(&b, "    %s.start();\n", t.Var)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			b.WriteString(r.requestCode(i, reqs[i], t.Var))
			if i < end-1 && r.opts.ThinkTime > 0 {
				fmt.Fprintf(&b, "\n    load.thinkTime(%d);", r.opts.ThinkTime)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n    %s.stop(load.TransactionStatus.Passed);\n", t.Var)
		start = end
	}
	return b.String(), nil
}

func enabled(vs []collection.Variable) map[string]string {
	out := make(map[string]string, len(vs))
	for _, v := range vs {
		if v.Disabled || strings.TrimSpace(v.Key) == "" {
			continue
		}
		out[v.Key] = v.Value
	}
	return out
}

func commentText(s string) string {
	s = strings.ReplaceAll(s, "*/", "* /")
	return strings.Join(strings.Fields(s), " ")
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
