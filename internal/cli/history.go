// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Stored conversation: show, clear, export.

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/export"
	"github.com/jeranaias/tauros/internal/model"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show, clear or export the stored conversation",
	}

	var limit int
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			msgs := sess.History()
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}
			if a.jsonOut {
				return outputJSON(a.opts.out, msgs)
			}
			printHistory(a.opts.out, msgs, a.cfg.Prompts.MaxContentLength)
			return nil
		},
	}
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "only the last n messages")
	showCmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.ClearHistory(cmd.Context()); err != nil {
				return fmt.Errorf("clear history: %w", err)
			}
			fmt.Fprintf(a.opts.out, "%s Conversazione cancellata\n", RenderStatus("ok"))
			return nil
		},
	}

	var (
		format    string
		outputDir string
	)
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the conversation to a JSON or Markdown file",
		Example: `  tauros history export
  tauros history export --format md --output ~/Documenti`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			path, err := a.export(sess.Export, format, outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.opts.out, "%s Esportato in %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", export.FormatJSON, "json or markdown (md)")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory")

	cmd.AddCommand(showCmd, clearCmd, exportCmd)
	return cmd
}

// export validates the format and directory, then runs exportFn.
func (a *app) export(exportFn func(string, *export.Options) (string, error), format, outputDir string) (string, error) {
	if _, err := export.ForFormat(format, nil); err != nil {
		return "", ErrUnsupportedFormat(format, []string{export.FormatJSON, export.FormatMarkdown, "md"})
	}
	dir, err := ValidateOutputPath(outputDir)
	if err != nil {
		return "", &ValidationError{Field: "output", Value: outputDir, Reason: err.Error()}
	}

	opts := export.DefaultOptions()
	opts.OutputDir = dir
	opts.Now = a.opts.now
	path, err := exportFn(format, opts)
	if err != nil {
		return "", fmt.Errorf("export conversation: %w", err)
	}
	return path, nil
}

// printHistory writes one line per message, content capped at maxLen
// user-perceived characters.
func printHistory(w io.Writer, msgs []model.ChatMessage, maxLen int) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("[Nessun messaggio]"))
		return
	}
	for _, msg := range msgs {
		stamp := DimStyle.Render(msg.Timestamp.Local().Format("02/01 15:04"))
		label := roleLabel(msg)
		preview := msg.Preview(maxLen)
		if msg.Error {
			preview = ErrorStyle.Render(preview)
		}
		fmt.Fprintf(w, "%s %s %s\n", stamp, label, preview)
	}
}

// roleLabel renders the display name of the sender in its color.
func roleLabel(msg model.ChatMessage) string {
	name := msg.Sender.DisplayName() + ":"
	switch msg.Sender {
	case model.RoleUser:
		return userLabelStyle.Render(name)
	case model.RoleAssistant:
		return botLabelStyle.Render(name)
	default:
		return systemLabelStyle.Render(name)
	}
}
