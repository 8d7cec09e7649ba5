// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt holds the template and persona registry and the engine
// that renders templates into prompt text.
//
// Templates are YAML files with {name} placeholders; personas and tone
// instructions come from a TOML file. Both ship embedded and can be extended
// from the user's prompts directory.
//
//	reg, err := prompt.Load(prompt.LoadOptions{TemplatesDir: dir})
//	eng := prompt.NewEngine(reg)
//	out, err := eng.Render("email_formal", prompt.Variables{"subject": "progetto"}, "professional", "formal")
package prompt
