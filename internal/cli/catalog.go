// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// catalog.go - Listings of templates, personas and models.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/util"
)

// column widths for the listing tables
const (
	keyColumnWidth  = 16
	nameColumnWidth = 26
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"tpl"},
		Short:   "List message templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.promptEngine()
			if err != nil {
				return err
			}
			templates := engine.Registry().Templates()
			if a.jsonOut {
				return outputJSON(a.opts.out, templates)
			}

			w := a.opts.out
			fmt.Fprintln(w, TitleStyle.Render("Template"))
			fmt.Fprintln(w, RenderSeparator(60))
			for _, t := range templates {
				fmt.Fprintf(w, "%s %s %s\n",
					HighlightStyle.Render(util.PadRight(t.Key, keyColumnWidth)),
					util.PadRight(t.Tone, 10),
					DimStyle.Render(strings.Join(t.Variables, ", ")))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")
	return cmd
}

func newPersonasCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List personas and their tones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.promptEngine()
			if err != nil {
				return err
			}
			personas := engine.Registry().Personas()
			if a.jsonOut {
				return outputJSON(a.opts.out, personas)
			}

			w := a.opts.out
			fmt.Fprintln(w, TitleStyle.Render("Personalità"))
			fmt.Fprintln(w, RenderSeparator(60))
			for _, p := range personas {
				marker := " "
				if p.Key == a.cfg.Chat.DefaultPersona {
					marker = "*"
				}
				fmt.Fprintf(w, "%s %s %s %s\n",
					marker,
					HighlightStyle.Render(util.PadRight(p.Key, keyColumnWidth)),
					util.PadRight(p.Name, nameColumnWidth),
					DimStyle.Render(strings.Join(p.Tones, ", ")))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the API",
		Long: `List the models offered by the API.

When the list cannot be fetched, or offline mode forbids the request, a
built-in list of Mistral models is shown instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			var models []model.ModelInfo
			if a.cloudAllowed() != nil {
				models = model.FallbackModels()
			} else {
				models = sess.AvailableModels(cmd.Context())
			}

			if a.jsonOut {
				return outputJSON(a.opts.out, models)
			}
			printModels(a.opts.out, models, a.cfg.API.Model)
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")
	return cmd
}

// printModels writes one model per line, marking the active one.
func printModels(w io.Writer, models []model.ModelInfo, active string) {
	width := keyColumnWidth
	for _, m := range models {
		if n := util.StringWidth(m.ID); n > width {
			width = n
		}
	}
	for _, m := range models {
		marker := " "
		if m.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s %s\n", marker, util.PadRight(m.ID, width), DimStyle.Render(m.DisplayName()))
	}
}
