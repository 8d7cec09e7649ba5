// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/templates/*.yaml builtin/personas.toml
var builtinFS embed.FS

// =============================================================================
// TYPES
// =============================================================================

// Template is a named message pattern with {name} placeholders.
type Template struct {
	Key         string   `yaml:"key"`
	Description string   `yaml:"description"`
	Body        string   `yaml:"body"`
	Variables   []string `yaml:"variables"`
	Tone        string   `yaml:"tone"`
	Language    string   `yaml:"language"`
}

// Persona is a response style: display data, the base system prompt sent to
// the model, its sampling temperature, and per-tone modifier phrases.
type Persona struct {
	Key           string            `toml:"-"`
	Name          string            `toml:"name"`
	Style         string            `toml:"style"`
	PromptPrefix  string            `toml:"prompt_prefix"`
	SystemPrompt  string            `toml:"system_prompt"`
	Temperature   float64           `toml:"temperature"`
	ToneModifiers map[string]string `toml:"tone_modifiers"`
}

// Tones returns the persona's tone keys, sorted.
func (p Persona) Tones() []string {
	tones := make([]string, 0, len(p.ToneModifiers))
	for tone := range p.ToneModifiers {
		tones = append(tones, tone)
	}
	sort.Strings(tones)
	return tones
}

// TemplateInfo is the listing form of a template.
type TemplateInfo struct {
	Key       string
	Name      string
	Variables []string
	Tone      string
	Language  string
}

// PersonaInfo is the listing form of a persona.
type PersonaInfo struct {
	Key   string
	Name  string
	Style string
	Tones []string
}

// personaFile is the TOML layout of personas.toml.
type personaFile struct {
	Tones    map[string]string  `toml:"tones"`
	Personas map[string]Persona `toml:"personas"`
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry is an immutable lookup table of templates, personas and tone
// instructions. Build it once with NewRegistry or Load.
type Registry struct {
	templates map[string]Template
	personas  map[string]Persona
	tones     map[string]string
}

// NewRegistry validates the given entries and returns a registry.
// Later entries with the same key replace earlier ones.
func NewRegistry(templates []Template, personas []Persona, tones map[string]string) (*Registry, error) {
	r := &Registry{
		templates: make(map[string]Template, len(templates)),
		personas:  make(map[string]Persona, len(personas)),
		tones:     make(map[string]string, len(tones)),
	}

	var errs []error
	for _, t := range templates {
		if err := validateTemplate(t); err != nil {
			errs = append(errs, err)
			continue
		}
		t.Variables = append([]string(nil), t.Variables...)
		r.templates[t.Key] = t
	}
	for _, p := range personas {
		if err := validatePersona(p); err != nil {
			errs = append(errs, err)
			continue
		}
		mods := make(map[string]string, len(p.ToneModifiers))
		for k, v := range p.ToneModifiers {
			mods[k] = v
		}
		p.ToneModifiers = mods
		r.personas[p.Key] = p
	}
	for k, v := range tones {
		r.tones[k] = v
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// validateTemplate enforces that every declared variable appears exactly once
// as a placeholder and that no variable is declared twice.
func validateTemplate(t Template) error {
	if strings.TrimSpace(t.Key) == "" {
		return errors.New("template with empty key")
	}
	seen := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if v == "" {
			return fmt.Errorf("template %q: empty variable name", t.Key)
		}
		if seen[v] {
			return fmt.Errorf("template %q: variable %q declared twice", t.Key, v)
		}
		seen[v] = true
		if n := strings.Count(t.Body, placeholder(v)); n != 1 {
			return fmt.Errorf("template %q: placeholder {%s} appears %d times, want 1", t.Key, v, n)
		}
	}
	return nil
}

func validatePersona(p Persona) error {
	if strings.TrimSpace(p.Key) == "" {
		return errors.New("persona with empty key")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("persona %q: temperature %g out of range [0, 2]", p.Key, p.Temperature)
	}
	return nil
}

// Template looks up a template by key.
func (r *Registry) Template(key string) (Template, bool) {
	t, ok := r.templates[key]
	return t, ok
}

// Persona looks up a persona by key.
func (r *Registry) Persona(key string) (Persona, bool) {
	p, ok := r.personas[key]
	return p, ok
}

// ToneInstruction returns the persona independent instruction for a tone.
func (r *Registry) ToneInstruction(tone string) (string, bool) {
	s, ok := r.tones[tone]
	return s, ok
}

// HasTone reports whether tone is known globally or as a modifier of persona.
func (r *Registry) HasTone(persona, tone string) bool {
	if _, ok := r.tones[tone]; ok {
		return true
	}
	p, ok := r.personas[persona]
	if !ok {
		return false
	}
	_, ok = p.ToneModifiers[tone]
	return ok
}

// Templates lists all templates sorted by key.
func (r *Registry) Templates() []TemplateInfo {
	out := make([]TemplateInfo, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, TemplateInfo{
			Key:       t.Key,
			Name:      strings.ToUpper(strings.ReplaceAll(t.Key, "_", " ")),
			Variables: append([]string(nil), t.Variables...),
			Tone:      t.Tone,
			Language:  t.Language,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Personas lists all personas sorted by key.
func (r *Registry) Personas() []PersonaInfo {
	out := make([]PersonaInfo, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, PersonaInfo{Key: p.Key, Name: p.Name, Style: p.Style, Tones: p.Tones()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// =============================================================================
// LOADING
// =============================================================================

// LoadOptions names optional user sources layered over the built-ins.
type LoadOptions struct {
	// TemplatesDir holds *.yaml template files.
	TemplatesDir string
	// PersonasFile is a personas.toml file.
	PersonasFile string
}

// LoadBuiltin returns a registry of the bundled templates and personas.
func LoadBuiltin() (*Registry, error) {
	return Load(LoadOptions{})
}

// Load builds a registry from the built-ins plus the user sources in opts.
// User entries replace built-ins with the same key. Missing user paths are
// ignored.
func Load(opts LoadOptions) (*Registry, error) {
	templates, err := loadTemplatesFS(builtinFS, "builtin/templates")
	if err != nil {
		return nil, fmt.Errorf("builtin templates: %w", err)
	}
	data, err := builtinFS.ReadFile("builtin/personas.toml")
	if err != nil {
		return nil, fmt.Errorf("read builtin personas: %w", err)
	}
	personas, tones, err := parsePersonas(data)
	if err != nil {
		return nil, fmt.Errorf("builtin personas: %w", err)
	}

	if opts.TemplatesDir != "" {
		user, err := loadTemplatesFS(os.DirFS(opts.TemplatesDir), ".")
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("user templates %s: %w", opts.TemplatesDir, err)
		}
		templates = append(templates, user...)
	}

	if opts.PersonasFile != "" {
		data, err := os.ReadFile(opts.PersonasFile)
		switch {
		case err == nil:
			userPersonas, userTones, err := parsePersonas(data)
			if err != nil {
				return nil, fmt.Errorf("user personas %s: %w", opts.PersonasFile, err)
			}
			personas = append(personas, userPersonas...)
			for k, v := range userTones {
				tones[k] = v
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read user personas: %w", err)
		}
	}

	return NewRegistry(templates, personas, tones)
}

func loadTemplatesFS(fsys fs.FS, dir string) ([]Template, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", entry.Name(), err)
		}
		if t.Key == "" {
			t.Key = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func parsePersonas(data []byte) ([]Persona, map[string]string, error) {
	var pf personaFile
	if _, err := toml.Decode(string(data), &pf); err != nil {
		return nil, nil, err
	}
	personas := make([]Persona, 0, len(pf.Personas))
	for key, p := range pf.Personas {
		p.Key = key
		personas = append(personas, p)
	}
	sort.Slice(personas, func(i, j int) bool { return personas[i].Key < personas[j].Key })
	if pf.Tones == nil {
		pf.Tones = map[string]string{}
	}
	return personas, pf.Tones, nil
}

func placeholder(name string) string {
	return "{" + name + "}"
}
