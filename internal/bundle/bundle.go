// Package bundle assembles the files of a DevWeb script folder around the
// generated main.js.
package bundle

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"

	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/errdef"
	"github.com/unkn0wn-root/devwebgen/internal/params"
)

const (
	MainFile     = "main.js"
	RTSFile      = "rts.yml"
	ScenarioFile = "scenario.yml"
	TSConfigFile = "tsconfig.json"
	SDKFile      = "DevWebSdk.d.ts"
	ParamsFile   = "parameters.yml"
)

//go:embed assets/rts.yml
var rtsYAML []byte

//go:embed assets/DevWebSdk.d.ts
var sdkStub []byte

type File struct {
	Name    string
	Content []byte
}

// Scenario holds the load shape written to scenario.yml. Times are seconds.
type Scenario struct {
	Vusers    int
	RampUp    int
	Duration  int
	PacingMin int
	PacingMax int
}

func DefaultScenario() Scenario {
	return Scenario{Vusers: 1, RampUp: 2, Duration: 20, PacingMin: 3, PacingMax: 6}
}

type Input struct {
	Script   *devweb.Script
	Columns  []params.Column
	Scenario Scenario
	// SDKPath names a DevWebSdk.d.ts from a DevWeb install; the bundled stub
	// is used when it is empty or unreadable.
	SDKPath string
}

type Bundle struct {
	Files    []File
	Warnings []string
}

// Build returns the folder contents in write order: main.js, payload side
// files, parameter files, then the runtime settings.
func Build(in Input) (*Bundle, error) {
	if in.Script == nil {
		return nil, errdef.New(errdef.CodeRender, "bundle: no script")
	}
	b := &Bundle{}
	b.add(MainFile, []byte(in.Script.Text))
	for _, f := range in.Script.SideFiles {
		b.add(f.Name, []byte(f.Content))
	}

	if len(in.Columns) > 0 {
		yml, err := params.RenderYAML(in.Columns)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeRender, err, "render %s", ParamsFile)
		}
		b.add(ParamsFile, yml)
		if data := params.RenderCSV(in.Columns); data != nil {
			b.add(params.DataFile, data)
		}
	}

	b.add(RTSFile, rtsYAML)
	b.add(ScenarioFile, ScenarioYAML(in.Scenario))
	ts, err := TSConfig()
	if err != nil {
		return nil, err
	}
	b.add(TSConfigFile, ts)
	b.add(SDKFile, b.sdk(in.SDKPath))
	return b, nil
}

func (b *Bundle) add(name string, content []byte) {
	b.Files = append(b.Files, File{Name: name, Content: content})
}

func (b *Bundle) sdk(path string) []byte {
	if path == "" {
		return sdkStub
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, SDKFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		b.Warnings = append(b.Warnings, "DevWebSdk.d.ts not readable, using fallback: "+err.Error())
		return sdkStub
	}
	return data
}

// Lookup returns the file with name, or nil.
func (b *Bundle) Lookup(name string) *File {
	for i := range b.Files {
		if b.Files[i].Name == name {
			return &b.Files[i]
		}
	}
	return nil
}

// ScenarioYAML renders scenario.yml; zero fields take the defaults.
func ScenarioYAML(s Scenario) []byte {
	def := DefaultScenario()
	pick := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}
	minPace := pick(s.PacingMin, def.PacingMin)
	maxPace := pick(s.PacingMax, def.PacingMax)
	if maxPace < minPace {
		maxPace = minPace
	}
	return []byte(heredoc.Docf(`
		# All times are defined in seconds
		vusers: %d        #The number of Vusers that will be run during the test
		pacing:          #The period of time to wait between iteration of each Vuser
		  type: delay    #The Pacing type, valid values: delay or interval
		  mode: random   #The Pacing mode, valid values: fixed or random
		  min: %d         #The min and max are valid on mode: random.
		  max: %d         #The min and max determine the range of values
		rampUp: %d        #The number of seconds it will take to start all the Vusers
		duration: %d     #The number of seconds to run Vuser iterations after all the Vusers have started running
		tearDown: 0      #Not used
		`,
		pick(s.Vusers, def.Vusers),
		minPace,
		maxPace,
		pick(s.RampUp, def.RampUp),
		pick(s.Duration, def.Duration),
	))
}

type compilerOptions struct {
	NoEmit           bool     `json:"noEmit"`
	JSX              string   `json:"jsx"`
	AllowJS          bool     `json:"allowJs"`
	Lib              []string `json:"lib"`
	Module           string   `json:"module"`
	ModuleResolution string   `json:"moduleResolution"`
	Target           string   `json:"target"`
}

type tsconfig struct {
	CompilerOptions compilerOptions `json:"compilerOptions"`
	Files           []string        `json:"files"`
	Include         []string        `json:"include"`
	Exclude         []string        `json:"exclude"`
}

func TSConfig() ([]byte, error) {
	out, err := json.MarshalIndent(tsconfig{
		CompilerOptions: compilerOptions{
			NoEmit:           true,
			JSX:              "preserve",
			AllowJS:          true,
			Lib:              []string{"es2020"},
			Module:           "commonjs",
			ModuleResolution: "node",
			Target:           "es2020",
		},
		Files:   []string{SDKFile},
		Include: []string{"./*.js"},
		Exclude: []string{"*.d.ts"},
	}, "", "  ")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeRender, err, "render %s", TSConfigFile)
	}
	return append(out, '\n'), nil
}
