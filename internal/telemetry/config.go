package telemetry

import (
	"fmt"
	"strings"
	"time"
)

const defaultService = "devwebgen"

type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// NewConfig builds a Config from settings text values. An empty service name
// falls back to devwebgen; a malformed timeout or header list is an error.
func NewConfig(endpoint string, insecure bool, service, version, dialTimeout, headers string) (Config, error) {
	cfg := Config{
		Endpoint:    strings.TrimSpace(endpoint),
		Insecure:    insecure,
		ServiceName: strings.TrimSpace(service),
		Version:     strings.TrimSpace(version),
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultService
	}
	if d := strings.TrimSpace(dialTimeout); d != "" {
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return Config{}, fmt.Errorf("telemetry dial timeout: %w", err)
		}
		cfg.DialTimeout = parsed
	}
	h, err := ParseHeaders(headers)
	if err != nil {
		return Config{}, err
	}
	cfg.Headers = h
	return cfg, nil
}

// ParseHeaders reads "k=v, k2=v2". Blank input yields nil.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("telemetry header %q: expected key=value", part)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
