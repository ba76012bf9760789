// Package diag collects per-request warnings raised while converting a
// collection. Warnings never stop a run; they end up in the report.
package diag

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Stages that raise warnings.
const (
	StageLoad      = "load"
	StageScripts   = "scripts"
	StageCorrelate = "correlation"
	StageAuth      = "auth"
	StageGenerate  = "generate"
	StageValidate  = "validate"
)

type Warning struct {
	Stage   string `json:"stage"`
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Request == "" {
		return w.Message
	}
	return w.Request + ": " + w.Message
}

// Collector keeps warnings in first-seen order and drops exact repeats.
// A nil *Collector discards everything.
type Collector struct {
	mu   sync.Mutex
	log  *zap.Logger
	seen map[Warning]struct{}
	list []Warning
}

func NewCollector(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{log: log}
}

func (c *Collector) Add(stage, request, msg string) {
	if c == nil {
		return
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	w := Warning{Stage: stage, Request: request, Message: msg}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = make(map[Warning]struct{})
	}
	if _, ok := c.seen[w]; ok {
		return
	}
	c.seen[w] = struct{}{}
	c.list = append(c.list, w)
	if c.log != nil {
		c.log.Warn(msg, zap.String("stage", stage), zap.String("request", request))
	}
}

func (c *Collector) Addf(stage, request, format string, args ...any) {
	c.Add(stage, request, fmt.Sprintf(format, args...))
}

// AddAll records msgs under one stage and request.
func (c *Collector) AddAll(stage, request string, msgs []string) {
	for _, m := range msgs {
		c.Add(stage, request, m)
	}
}

func (c *Collector) List() []Warning {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.list) == 0 {
		return nil
	}
	return append([]Warning(nil), c.list...)
}

func (c *Collector) Strings() []string {
	list := c.List()
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, w := range list {
		out = append(out, w.String())
	}
	return out
}

func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.list)
}
