// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTemplateNotFound is returned by Render for an unknown template key.
var ErrTemplateNotFound = errors.New("template not found")

// Variables maps placeholder names to values for one render.
type Variables map[string]string

// Rendered is the output of Engine.Render.
type Rendered struct {
	Text     string
	Template string
	Persona  string
	Tone     string
	// Instructions is the persona modifier for the tone, empty when the
	// persona or the tone is unknown.
	Instructions string
}

// HasInstructions reports whether the render carries persona instructions.
func (r *Rendered) HasInstructions() bool {
	return r.Instructions != ""
}

// Engine renders registry templates. It is safe for concurrent use.
type Engine struct {
	reg *Registry
	now func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock sets the time source for the date and time placeholders.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine returns an engine over reg.
func NewEngine(reg *Registry, opts ...EngineOption) *Engine {
	e := &Engine{reg: reg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine renders from.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// Render fills the template's declared variables in order, then the dynamic
// placeholders (calendar, user context, hashtags), and finally attaches the
// persona's modifier for tone when one exists.
//
// Missing or empty variables render as [name]; the only error is
// ErrTemplateNotFound.
func (e *Engine) Render(key string, vars Variables, persona, tone string) (*Rendered, error) {
	tmpl, ok := e.reg.Template(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, key)
	}

	// One replacer pass so a value is never scanned for another placeholder.
	pairs := make([]string, 0, 2*len(tmpl.Variables))
	for _, name := range tmpl.Variables {
		value := vars[name]
		if value == "" {
			value = "[" + name + "]"
		}
		pairs = append(pairs, placeholder(name), value)
	}
	text := strings.NewReplacer(pairs...).Replace(tmpl.Body)

	text = resolveDateTime(text, e.now())
	text = resolveUserContext(text, vars)
	text = resolveHashtags(text, vars)

	out := &Rendered{Text: text, Template: key, Persona: persona, Tone: tone}
	if p, ok := e.reg.Persona(persona); ok {
		out.Instructions = p.ToneModifiers[tone]
	}
	return out, nil
}
