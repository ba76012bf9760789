package correlation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/extract"
)

const (
	recommendTokens = "Authentication tokens detected. Ensure proper token extraction and usage."
	recommendCSRF   = "CSRF tokens detected. Verify CSRF handling in your application."
	recommendManual = "No automatic correlations detected. Manual review recommended."
)

type Summary struct {
	Total           int            `json:"total"`
	ByType          map[string]int `json:"byType"`
	Recommendations []string       `json:"recommendations"`
}

func Summarize(rules []Rule) Summary {
	sum := Summary{Total: len(rules), ByType: make(map[string]int)}
	var token, csrf bool
	for _, r := range rules {
		sum.ByType[r.Type]++
		switch r.Type {
		case "token":
			token = true
		case "csrf":
			csrf = true
		}
	}
	if token {
		sum.Recommendations = append(sum.Recommendations, recommendTokens)
	}
	if csrf {
		sum.Recommendations = append(sum.Recommendations, recommendCSRF)
	}
	if len(rules) == 0 {
		sum.Recommendations = append(sum.Recommendations, recommendManual)
	}
	return sum
}

// Produced returns the rules whose producer is the request at index, one per
// name, in rule order.
func Produced(rules []Rule, index int) []Rule {
	var out []Rule
	seen := make(map[string]struct{})
	for _, r := range rules {
		if r.ProducerIndex != index {
			continue
		}
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Consumers returns the rules whose consumer is the request at index.
func Consumers(rules []Rule, index int) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.ConsumerIndex == index {
			out = append(out, r)
		}
	}
	return out
}

var identSegmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ToJMESPath converts a $.a.b[0] extractor path into a JMESPath expression.
func ToJMESPath(path string) (string, error) {
	p := strings.TrimPrefix(strings.TrimSpace(path), "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return "@", nil
	}
	var parts []string
	for _, seg := range strings.Split(p, ".") {
		key, index, _ := strings.Cut(seg, "[")
		if index != "" {
			index = "[" + index
		}
		switch {
		case key == "" && index != "":
		case identSegmentRe.MatchString(key):
		case key == "":
			return "", fmt.Errorf("empty segment in %q", path)
		default:
			quoted, err := json.Marshal(key)
			if err != nil {
				return "", err
			}
			key = string(quoted)
		}
		if key == "" && len(parts) > 0 {
			parts[len(parts)-1] += index
			continue
		}
		parts = append(parts, key+index)
	}
	return strings.Join(parts, "."), nil
}

// CheckExamples evaluates json extractor paths against the example response
// bodies saved on their producer. A path that matches nothing in any example
// is reported; producers without examples are skipped.
func CheckExamples(rules []Rule, reqs []*collection.Request) []string {
	byIndex := make(map[int]*collection.Request, len(reqs))
	for _, r := range reqs {
		byIndex[r.Index] = r
	}
	var warnings []string
	checked := make(map[[2]string]struct{})
	for _, rule := range rules {
		if rule.Extractor.Kind != extract.KindJSON {
			continue
		}
		producer := byIndex[rule.ProducerIndex]
		if producer == nil || len(producer.ExampleBodies) == 0 {
			continue
		}
		path := extract.JSONPath(rule.Extractor)
		key := [2]string{producer.Name, path}
		if _, ok := checked[key]; ok {
			continue
		}
		checked[key] = struct{}{}

		expr, err := ToJMESPath(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("extractor %s: cannot check path %s: %v", rule.Name, path, err))
			continue
		}
		var parsed, matched bool
		for _, body := range producer.ExampleBodies {
			var data any
			if json.Unmarshal([]byte(body), &data) != nil {
				continue
			}
			parsed = true
			result, err := jmespath.Search(expr, data)
			if err == nil && result != nil {
				matched = true
				break
			}
		}
		if parsed && !matched {
			warnings = append(warnings, fmt.Sprintf(
				"extractor %s: path %s not found in example response of %q", rule.Name, path, producer.Name))
		}
	}
	return warnings
}
