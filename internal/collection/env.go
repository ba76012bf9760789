package collection

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
	"github.com/unkn0wn-root/devwebgen/internal/jsonx"
)

// LoadEnvironment reads environment values from a Postman environment export,
// a Bruno environment (.bru or JSON), a flat JSON object or a dotenv file.
func LoadEnvironment(path string) ([]Variable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read environment %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case bruExt:
		return decodeBruEnvironment(data), nil
	case ".json":
		return DecodeEnvironment(data)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return DecodeEnvironment(data)
	}
	values, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse dotenv %s", filepath.Base(path))
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Variable, 0, len(keys))
	for _, k := range keys {
		out = append(out, Variable{Key: k, Value: values[k]})
	}
	return out, nil
}

// DecodeEnvironment reads the JSON environment shapes; key order is kept.
func DecodeEnvironment(data []byte) ([]Variable, error) {
	var doc struct {
		Values    []rawKV `json:"values"`
		Variables []rawKV `json:"variables"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "decode environment")
	}
	switch {
	case doc.Values != nil:
		return variables(doc.Values), nil
	case doc.Variables != nil:
		return variables(doc.Variables), nil
	}
	obj, err := jsonx.Parse(data)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "decode environment")
	}
	out := make([]Variable, 0, len(obj.Members))
	for _, m := range obj.Members {
		if m.Value.Kind == jsonx.Object || m.Value.Kind == jsonx.Array {
			continue
		}
		value := m.Value.Text
		if m.Value.Kind == jsonx.Null {
			value = ""
		}
		out = append(out, Variable{Key: m.Key, Value: value})
	}
	return out, nil
}

func decodeBruEnvironment(data []byte) []Variable {
	var out []Variable
	for _, b := range splitBruBlocks(data) {
		switch b.name {
		case "vars":
			out = append(out, b.dict()...)
		case "vars:secret":
			for _, name := range b.list() {
				disabled := strings.HasPrefix(name, "~")
				out = append(out, Variable{Key: strings.TrimPrefix(name, "~"), Disabled: disabled})
			}
		}
	}
	return out
}
