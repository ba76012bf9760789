// Package report summarises what the converter found in a collection.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/auth"
	"github.com/unkn0wn-root/devwebgen/internal/classify"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/correlation"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/diag"
	"github.com/unkn0wn-root/devwebgen/internal/params"
	"github.com/unkn0wn-root/devwebgen/internal/payload"
)

type Requests struct {
	Total             int            `json:"total"`
	ByMethod          map[string]int `json:"byMethod"`
	ByFolder          map[string]int `json:"byFolder"`
	WithCustomScripts int            `json:"withCustomScripts"`
}

type Correlations struct {
	Total   int                 `json:"total"`
	Rules   []correlation.Rule  `json:"rules"`
	Summary correlation.Summary `json:"summary"`
	// Unmatched lists extractor paths that match none of the saved example
	// responses of their producer.
	Unmatched []string `json:"unmatched,omitempty"`
}

type Parameters struct {
	Total      int                `json:"total"`
	BySource   map[string]int     `json:"bySource"`
	ByType     map[string]int     `json:"byType"`
	Parameters []params.Parameter `json:"parameters"`
}

type CustomScripts struct {
	Total      int      `json:"total"`
	PreRequest int      `json:"preRequest"`
	Test       int      `json:"test"`
	Warnings   []string `json:"warnings"`
}

type Classification struct {
	Dynamic       []string             `json:"dynamic"`
	Parameterized []string             `json:"parameterized"`
	Builtin       []string             `json:"builtin"`
	Unresolved    []string             `json:"unresolved"`
	Parameters    []classify.Parameter `json:"parameters"`
}

type SideFile struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int    `json:"size"`
}

type Report struct {
	Collection     string         `json:"collection"`
	Format         string         `json:"format"`
	Requests       Requests       `json:"requests"`
	Correlations   Correlations   `json:"correlations"`
	Parameters     Parameters     `json:"parameters"`
	Authentication auth.Summary   `json:"authentication"`
	CustomScripts  CustomScripts  `json:"customScripts"`
	Classification Classification `json:"classification"`
	SideFiles      []SideFile     `json:"sideFiles"`
	Warnings       []diag.Warning `json:"warnings"`
}

// Input carries the pipeline results. Scripts is indexed like the
// collection requests.
type Input struct {
	Collection *collection.Collection
	Rules      []correlation.Rule
	Parameters []params.Parameter
	Auth       []auth.Config
	Scripts    []devweb.Converted
	Classes    *classify.Result
	SideFiles  []payload.File
	Warnings   []diag.Warning
}

func Build(in Input) *Report {
	r := &Report{
		Requests: Requests{
			ByMethod: make(map[string]int),
			ByFolder: make(map[string]int),
		},
		Parameters: Parameters{
			BySource:   make(map[string]int),
			ByType:     make(map[string]int),
			Parameters: nonNil(in.Parameters),
		},
		Authentication: auth.Summarize(in.Auth),
		SideFiles:      []SideFile{},
		Warnings:       nonNil(in.Warnings),
	}
	if c := in.Collection; c != nil {
		r.Collection = c.Name
		r.Format = string(c.Format)
		r.Requests.Total = len(c.Requests)
		for _, req := range c.Requests {
			r.Requests.ByMethod[strings.ToUpper(req.Method)]++
			folder := req.Folder
			if folder == "" {
				folder = "root"
			}
			r.Requests.ByFolder[folder]++
		}
		r.Correlations.Unmatched = correlation.CheckExamples(in.Rules, c.Requests)
	}

	r.Correlations.Total = len(in.Rules)
	r.Correlations.Rules = nonNil(in.Rules)
	r.Correlations.Summary = correlation.Summarize(in.Rules)

	r.Parameters.Total = len(in.Parameters)
	for _, p := range in.Parameters {
		r.Parameters.BySource[p.Source]++
		r.Parameters.ByType[p.Type]++
	}

	r.CustomScripts.Warnings = []string{}
	for _, s := range in.Scripts {
		if s.Pre == nil && s.Test == nil {
			continue
		}
		r.Requests.WithCustomScripts++
		r.CustomScripts.Total++
		if s.Pre != nil {
			r.CustomScripts.PreRequest++
			r.CustomScripts.Warnings = append(r.CustomScripts.Warnings, s.Pre.Warnings...)
		}
		if s.Test != nil {
			r.CustomScripts.Test++
			r.CustomScripts.Warnings = append(r.CustomScripts.Warnings, s.Test.Warnings...)
		}
	}

	r.Classification = classification(in.Classes)
	for _, f := range in.SideFiles {
		r.SideFiles = append(r.SideFiles, SideFile{Name: f.Name, Hash: f.Hash, Size: f.Size})
	}
	return r
}

func classification(res *classify.Result) Classification {
	c := Classification{
		Dynamic:       nonNil(res.Dynamic()),
		Builtin:       nonNil(res.Builtin()),
		Parameterized: []string{},
		Unresolved:    []string{},
		Parameters:    nonNil(res.Parameters()),
	}
	for _, e := range res.Entries() {
		if e.Kind != classify.KindParameterized {
			continue
		}
		c.Parameterized = append(c.Parameterized, e.Name)
		if e.Reason == classify.ReasonReferenced {
			c.Unresolved = append(c.Unresolved, e.Name)
		}
	}
	return c
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (r *Report) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(out, '\n'), nil
}

// Markdown renders the report for terminal display.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", mdText(orDash(r.Collection)))
	fmt.Fprintf(&b, "Format: `%s`\n\n", orDash(r.Format))

	b.WriteString("## Requests\n\n")
	fmt.Fprintf(&b, "%d requests, %d with custom scripts.\n\n", r.Requests.Total, r.Requests.WithCustomScripts)
	counts(&b, "Method", r.Requests.ByMethod)
	counts(&b, "Folder", r.Requests.ByFolder)

	b.WriteString("## Correlations\n\n")
	if len(r.Correlations.Rules) == 0 {
		b.WriteString("None detected.\n\n")
	} else {
		b.WriteString("| Name | Type | Producer | Consumer | Location |\n|---|---|---|---|---|\n")
		for _, rule := range r.Correlations.Rules {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				mdCell(rule.Name), mdCell(rule.Type), mdCell(rule.ProducerRequest),
				mdCell(rule.ConsumerRequest), mdCell(rule.UsageLocation))
		}
		b.WriteString("\n")
	}
	for _, rec := range r.Correlations.Summary.Recommendations {
		fmt.Fprintf(&b, "> %s\n\n", mdText(rec))
	}
	list(&b, "Extractor paths without an example match", r.Correlations.Unmatched)

	b.WriteString("## Parameters\n\n")
	if r.Parameters.Total == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Key | Source | Type | Value |\n|---|---|---|---|\n")
		for _, p := range r.Parameters.Parameters {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mdCell(p.Key), mdCell(p.Source), mdCell(p.Type), mdCell(clip(p.Value, 40)))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Variables\n\n")
	list(&b, "Dynamic", r.Classification.Dynamic)
	list(&b, "Parameterized", r.Classification.Parameterized)
	list(&b, "Built-in", r.Classification.Builtin)
	list(&b, "Referenced but never declared", r.Classification.Unresolved)

	b.WriteString("## Authentication\n\n")
	if r.Authentication.TotalConfigs == 0 {
		b.WriteString("None configured.\n\n")
	} else {
		b.WriteString("| Owner | Type | Folder |\n|---|---|---|\n")
		for _, c := range r.Authentication.Configs {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", mdCell(c.Name), mdCell(string(c.Type)), mdCell(orDash(c.Folder)))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Custom scripts\n\n")
	fmt.Fprintf(&b, "%d pre-request, %d test.\n\n", r.CustomScripts.PreRequest, r.CustomScripts.Test)

	if len(r.SideFiles) > 0 {
		b.WriteString("## Payload side files\n\n")
		for _, f := range r.SideFiles {
			fmt.Fprintf(&b, "- `%s` (%d bytes)\n", f.Name, f.Size)
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- **%s** %s\n", w.Stage, mdText(w.String()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func counts(b *strings.Builder, label string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "| %s | Count |\n|---|---|\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "| %s | %d |\n", mdCell(k), m[k])
	}
	b.WriteString("\n")
}

func list(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:** ", title)
	quoted := make([]string, 0, len(items))
	for _, it := range items {
		quoted = append(quoted, "`"+strings.ReplaceAll(it, "`", "'")+"`")
	}
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString("\n\n")
}

var mdEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func mdCell(s string) string {
	return mdEscaper.Replace(s)
}

func mdText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
