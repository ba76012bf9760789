// Package auth resolves collection auth blocks into flat configs and answers
// the questions the generator asks about them.
package auth

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/errdef"
)

type Type string

const (
	TypeOAuth2 Type = "oauth2"
	TypeBasic  Type = "basic"
	TypeBearer Type = "bearer"
	TypeAPIKey Type = "apikey"
	TypeAWSv4  Type = "awsv4"
	TypeDigest Type = "digest"
	TypeHawk   Type = "hawk"
	TypeNTLM   Type = "ntlm"
)

// Known reports whether t is one of the enumerated auth types.
func (t Type) Known() bool {
	switch t {
	case TypeOAuth2, TypeBasic, TypeBearer, TypeAPIKey, TypeAWSv4, TypeDigest, TypeHawk, TypeNTLM:
		return true
	default:
		return false
	}
}

// Config is one resolved auth block. Values holds the type specific section
// flattened to strings; nested values keep their JSON text.
type Config struct {
	Name   string               `json:"name"`
	Folder string               `json:"folder,omitempty"`
	Level  collection.AuthLevel `json:"level,omitempty"`
	Type   Type                 `json:"type"`
	Values map[string]string    `json:"config"`
}

// Get returns the first non-empty value among keys.
func (c *Config) Get(keys ...string) string {
	if c == nil {
		return ""
	}
	for _, k := range keys {
		if v := c.Values[k]; v != "" {
			return v
		}
	}
	return ""
}

// Keys lists the config keys in sorted order.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Values))
	for k := range c.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type pair struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Resolve flattens block into a Config owned by name. Unknown types still
// resolve so they can be reported and rendered as a commented stub.
func Resolve(block *collection.AuthBlock, name, folder string) (*Config, error) {
	if block == nil || strings.TrimSpace(block.Type) == "" {
		return nil, nil
	}
	cfg := &Config{
		Name:   name,
		Folder: folder,
		Type:   Type(strings.ToLower(strings.TrimSpace(block.Type))),
		Values: make(map[string]string),
	}
	raw := bytes.TrimSpace(block.Params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cfg, nil
	}
	switch raw[0] {
	case '[':
		var pairs []pair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, errdef.Wrap(errdef.CodeParse, err, "auth %s: decode %s params", name, cfg.Type)
		}
		for _, p := range pairs {
			if p.Key == "" {
				continue
			}
			cfg.Values[p.Key] = scalar(p.Value)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, errdef.Wrap(errdef.CodeParse, err, "auth %s: decode %s params", name, cfg.Type)
		}
		for k, v := range obj {
			cfg.Values[k] = scalar(v)
		}
	default:
		return nil, errdef.New(errdef.CodeParse, "auth %s: unexpected %s params", name, cfg.Type)
	}
	return cfg, nil
}

func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// Collect resolves every auth owner of coll in traversal order. Owners that
// share a name keep their first position and the last block. Blocks that
// fail to decode are reported in the returned warnings.
func Collect(coll *collection.Collection) ([]Config, []string) {
	if coll == nil {
		return nil, nil
	}
	var (
		out      []Config
		warnings []string
	)
	pos := make(map[string]int)
	for _, owner := range coll.AuthOwners {
		cfg, err := Resolve(owner.Block, owner.Name, owner.Folder)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		if cfg == nil {
			continue
		}
		cfg.Level = owner.Level
		if i, ok := pos[cfg.Name]; ok {
			out[i] = *cfg
			continue
		}
		pos[cfg.Name] = len(out)
		out = append(out, *cfg)
	}
	return out, warnings
}

// For picks the config that applies to req: its own block, then the deepest
// enclosing folder, then the first collected config.
func For(req *collection.Request, configs []Config) *Config {
	if req == nil {
		return nil
	}
	if req.Auth != nil {
		if cfg, err := Resolve(req.Auth, req.Name, req.Folder); err == nil && cfg != nil {
			cfg.Level = collection.AuthLevelRequest
			return cfg
		}
	}
	var (
		best  *Config
		depth = -1
	)
	for i := range configs {
		c := &configs[i]
		if c.Level != collection.AuthLevelFolder {
			continue
		}
		path := c.Name
		if c.Folder != "" {
			path = c.Folder + "/" + c.Name
		}
		if req.Folder != path && !strings.HasPrefix(req.Folder, path+"/") {
			continue
		}
		if d := strings.Count(path, "/"); d > depth {
			best, depth = c, d
		}
	}
	if best != nil {
		return best
	}
	if len(configs) == 0 {
		return nil
	}
	return &configs[0]
}

// NeedsSigning reports whether requests under cfg must carry signing options.
func NeedsSigning(cfg *Config) bool {
	return cfg != nil && cfg.Type == TypeAWSv4
}

// SigningOptions renders the value of the WebRequest awsSigning option, or
// "" when cfg does not sign.
func SigningOptions(cfg *Config) string {
	if !NeedsSigning(cfg) {
		return ""
	}
	return "{ region: load.global.awsRegion, service: load.global.awsService }"
}

// APIKeyIn reports where an apikey config places its key.
func APIKeyIn(cfg *Config) string {
	if in := strings.ToLower(cfg.Get("in")); in == "query" || in == "queryparams" {
		return "query"
	}
	return "header"
}

func apiKeyName(cfg *Config) string {
	if k := cfg.Get("key"); k != "" {
		return k
	}
	return "X-API-Key"
}

// HeaderInjection returns the header key and script expression added to
// every request under cfg.
func HeaderInjection(cfg *Config) (key, expr string, ok bool) {
	if cfg == nil {
		return "", "", false
	}
	switch cfg.Type {
	case TypeOAuth2, TypeBearer:
		return "Authorization",
			"`${load.global.oauth2TokenType || \"Bearer\"} ${load.global.oauth2AccessToken || load.global.bearerToken}`",
			true
	case TypeBasic:
		return "Authorization", "load.global.basicAuthHeader", true
	case TypeAPIKey:
		if APIKeyIn(cfg) == "query" {
			return "", "", false
		}
		return apiKeyName(cfg), "load.global.apiKey", true
	default:
		return "", "", false
	}
}

// QueryInjection returns the query parameter an apikey config adds.
func QueryInjection(cfg *Config) (key, expr string, ok bool) {
	if cfg == nil || cfg.Type != TypeAPIKey || APIKeyIn(cfg) != "query" {
		return "", "", false
	}
	return apiKeyName(cfg), "load.global.apiKey", true
}

type Entry struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Folder string `json:"folder"`
}

type Summary struct {
	TotalConfigs int          `json:"totalConfigs"`
	ByType       map[Type]int `json:"byType"`
	Configs      []Entry      `json:"configs"`
}

func Summarize(configs []Config) Summary {
	s := Summary{
		TotalConfigs: len(configs),
		ByType:       make(map[Type]int),
		Configs:      make([]Entry, 0, len(configs)),
	}
	for _, c := range configs {
		s.ByType[c.Type]++
		s.Configs = append(s.Configs, Entry{Name: c.Name, Type: c.Type, Folder: c.Folder})
	}
	return s
}
