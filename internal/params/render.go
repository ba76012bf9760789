package params

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	DataFile      = "collection_data.csv"
	NextOnce      = "once"
	NextIteration = "iteration"
)

const yamlHeader = `# Parameters Configuration
# Auto-generated from collection/environment variables
# nextValue: once = read once per test run (config), iteration = read per iteration (test data)
`

// Column is one parameter as it lands in parameters.yml and the data file.
type Column struct {
	Name      string
	Value     string
	NextValue string
}

// Columns turns extracted parameters into columns read once per run.
func Columns(ps []Parameter) []Column {
	out := make([]Column, 0, len(ps))
	for _, p := range ps {
		out = append(out, Column{Name: p.Key, Value: p.Value, NextValue: NextOnce})
	}
	return out
}

type yamlParam struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	FileName   string `yaml:"fileName"`
	ColumnName string `yaml:"columnName"`
	NextValue  string `yaml:"nextValue"`
	NextRow    string `yaml:"nextRow"`
	OnEnd      string `yaml:"onEnd"`
}

type yamlDoc struct {
	Parameters []yamlParam `yaml:"parameters"`
}

func RenderYAML(cols []Column) ([]byte, error) {
	if len(cols) == 0 {
		return []byte(yamlHeader + "# No parameters defined\nparameters: []\n"), nil
	}
	doc := yamlDoc{Parameters: make([]yamlParam, 0, len(cols))}
	for _, c := range cols {
		next := c.NextValue
		if next == "" {
			next = NextOnce
		}
		doc.Parameters = append(doc.Parameters, yamlParam{
			Name:       c.Name,
			Type:       "csv",
			FileName:   DataFile,
			ColumnName: c.Name,
			NextValue:  next,
			NextRow:    "sequential",
			OnEnd:      "loop",
		})
	}
	var buf bytes.Buffer
	buf.WriteString(yamlHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render parameters.yml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render parameters.yml: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderCSV writes a header row and a single value row. It returns nil when
// there is nothing to write.
func RenderCSV(cols []Column) []byte {
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		values[i] = c.Value
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(names)
	_ = w.Write(values)
	w.Flush()
	return buf.Bytes()
}
