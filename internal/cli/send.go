// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// send.go - One-shot send and offline template rendering.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/prompt"
)

// =============================================================================
// SEND
// =============================================================================

func newSendCmd(a *app) *cobra.Command {
	var flags styleFlags

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply.

The message is the joined arguments, or stdin when no argument is given.
Both the message and the reply are appended to the stored conversation.`,
		Example: `  tauros send "Riassumi il RFC 9110 in tre righe"
  tauros send --template twitter_post --var hashtags=golang "Go 1.24 è uscito"
  git log -1 --format=%B | tauros send --persona analytical`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(a.opts.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return &ValidationError{Field: "message", Reason: "empty message", Example: `tauros send "Ciao"`}
			}

			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := a.sendOptions(flags)
			if err != nil {
				return err
			}

			reply, err := sess.SendMessage(cmd.Context(), text, opts)
			if err != nil {
				return fmt.Errorf("send message: %w", err)
			}

			if a.jsonOut {
				return outputJSON(a.opts.out, map[string]any{
					"content":       reply.Response.Content,
					"model":         reply.Response.Model,
					"finish_reason": reply.Response.FinishReason,
					"usage": map[string]int{
						"prompt_tokens":     reply.Response.Usage.PromptTokens,
						"completion_tokens": reply.Response.Usage.CompletionTokens,
						"total_tokens":      reply.Response.Usage.TotalTokens,
					},
				})
			}
			fmt.Fprintln(a.opts.out, reply.Message.Content)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print the reply as JSON")
	return cmd
}

// =============================================================================
// RENDER
// =============================================================================

func newRenderCmd(a *app) *cobra.Command {
	var (
		vars    []string
		content string
		persona string
		tone    string
	)

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Print a filled template without sending it",
		Example: `  tauros render email_formal --var recipient_name=Rossi --content "la riunione è spostata"
  tauros render linkedin_post --persona creative --tone casual --content "Abbiamo aperto il codice"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.promptEngine()
			if err != nil {
				return err
			}
			values, err := parseVars(vars)
			if err != nil {
				return err
			}
			if content != "" {
				values[prompt.VarMainContent] = content
			}
			if err := checkStyle(engine.Registry(), persona, tone); err != nil {
				return err
			}

			r, err := engine.Render(args[0], values, persona, tone)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return outputJSON(a.opts.out, map[string]string{
					"template":     r.Template,
					"persona":      r.Persona,
					"tone":         r.Tone,
					"text":         r.Text,
					"instructions": r.Instructions,
				})
			}
			fmt.Fprintln(a.opts.out, r.Text)
			if r.HasInstructions() {
				fmt.Fprintln(a.opts.out)
				fmt.Fprintln(a.opts.out, DimStyle.Render("Istruzioni: "+r.Instructions))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&vars, "var", nil, "template variable name=value (repeatable)")
	cmd.Flags().StringVar(&content, "content", "", "main content of the message")
	cmd.Flags().StringVarP(&persona, "persona", "p", "", "persona whose instructions to show")
	cmd.Flags().StringVarP(&tone, "tone", "t", "", "tone whose instructions to show")
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print the render as JSON")
	return cmd
}
