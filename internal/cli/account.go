// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// account.go - API key management, connection test and usage counters.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/cloud"
)

// =============================================================================
// KEY
// =============================================================================

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Mistral API key",
	}

	setCmd := &cobra.Command{
		Use:   "set [key]",
		Short: "Store the API key",
		Long: `Store the API key.

Without an argument the key is read from the terminal without echo, or as
one line from stdin when stdin is not a terminal. Passing the key as an
argument leaves it in the shell history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				var err error
				if key, err = a.readKey(); err != nil {
					return err
				}
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return &ValidationError{Field: "API key", Reason: "empty key", Example: "tauros key set"}
			}

			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.SetAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("store API key: %w", err)
			}
			fmt.Fprintf(a.opts.out, "%s Chiave API salvata (impronta %s)\n",
				RenderStatus("ok"), sess.KeyFingerprint())
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			has, err := sess.HasValidAPIKey(cmd.Context())
			if err != nil {
				return fmt.Errorf("read API key: %w", err)
			}
			if a.jsonOut {
				return outputJSON(a.opts.out, map[string]any{
					"configured":  has,
					"fingerprint": sess.KeyFingerprint(),
				})
			}
			if !has {
				fmt.Fprintf(a.opts.out, "%s Nessuna chiave API salvata. Usa: tauros key set\n", RenderStatus("warn"))
				return nil
			}
			fmt.Fprintf(a.opts.out, "%s Chiave API presente (impronta %s)\n", RenderStatus("ok"), sess.KeyFingerprint())
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := sess.SetAPIKey(cmd.Context(), ""); err != nil {
				return fmt.Errorf("remove API key: %w", err)
			}
			fmt.Fprintf(a.opts.out, "%s Chiave API rimossa\n", RenderStatus("ok"))
			return nil
		},
	}

	cmd.AddCommand(setCmd, statusCmd, clearCmd)
	return cmd
}

// readKey reads the key hidden from a terminal, or one line from the input.
func (a *app) readKey() (string, error) {
	if f, ok := a.opts.in.(*os.File); ok && f == os.Stdin && IsTTY() {
		fmt.Fprint(a.opts.errOut, "Chiave API Mistral: ")
		key, err := readSecret()
		fmt.Fprintln(a.opts.errOut)
		if err != nil {
			return "", fmt.Errorf("read API key: %w", err)
		}
		return key, nil
	}

	line, err := bufio.NewReader(a.opts.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read API key: %w", err)
	}
	return line, nil
}

// =============================================================================
// TEST
// =============================================================================

func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check the API key against the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.cloudAllowed(); err != nil {
				return err
			}

			ok, err := sess.TestConnection(cmd.Context())
			if err != nil {
				return fmt.Errorf("test connection: %w", err)
			}
			if !ok {
				return &cloud.Error{Kind: cloud.KindUnknown, Message: "unexpected reply to the connection test"}
			}
			fmt.Fprintf(a.opts.out, "%s Connessione a %s riuscita (modello %s)\n",
				RenderStatus("ok"), a.cfg.API.BaseURL, sess.GetStatus().Model)
			return nil
		},
	}
}

// =============================================================================
// USAGE
// =============================================================================

func newUsageCmd(a *app) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show or reset the API usage counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if reset {
				if err := sess.ResetUsage(cmd.Context()); err != nil {
					return fmt.Errorf("reset usage: %w", err)
				}
			}
			stats, err := sess.UsageStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read usage: %w", err)
			}

			if a.jsonOut {
				return outputJSON(a.opts.out, stats)
			}
			w := a.opts.out
			if reset {
				fmt.Fprintf(w, "%s Contatori azzerati\n", RenderStatus("ok"))
			}
			fmt.Fprintln(w, RenderKeyValue("Richieste:", formatCount(stats.Requests)))
			fmt.Fprintln(w, RenderKeyValue("Token usati:", formatCount(stats.TokensUsed)))
			fmt.Fprintln(w, RenderKeyValue("Media token:", fmt.Sprintf("%.1f", stats.AverageTokens())))
			lastReset := "mai"
			if !stats.LastReset.IsZero() {
				lastReset = stats.LastReset.Local().Format("02/01/2006 15:04")
			}
			fmt.Fprintln(w, RenderKeyValue("Ultimo azzeramento:", lastReset))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "zero the counters first")
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print as JSON")
	return cmd
}
