// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for tauros CLI.
//
// Command: chat (also the default when tauros runs without a subcommand)
//
// Examples:
//   tauros chat                           Start interactive chat
//   tauros chat --persona creative        Answer with the creative persona
//   tauros chat --template twitter_post   Wrap every message in a template
//   tauros --offline chat                 Local simulator, no network
//
// Interactive Commands (during chat):
//   /help, /h              Show available commands
//   /persona [key]         Show or switch persona
//   /tone [key]            Show or switch tone
//   /template [key|none]   Show, select or drop the message template
//   /var name=value        Set a template variable (empty value removes it)
//   /vars                  Show template variables
//   /clear, /c             Clear conversation history
//   /history [n]           Show the last n messages
//   /export [format] [dir] Export the conversation
//   /status, /s            Show session status
//   /usage                 Show API usage counters
//   /models                List available models
//   /quit, /q, /exit       Exit chat
//   Ctrl+C                 Cancel the pending reply (at the prompt: exit)
//   Ctrl+D                 Exit chat

package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tauros/internal/cloud"
	"github.com/jeranaias/tauros/internal/export"
	"github.com/jeranaias/tauros/internal/model"
	"github.com/jeranaias/tauros/internal/offline"
	"github.com/jeranaias/tauros/internal/prompt"
	"github.com/jeranaias/tauros/internal/session"
	"github.com/jeranaias/tauros/internal/util"
)

// =============================================================================
// INPUT
// =============================================================================

// LineReader yields chat input one line at a time. io.EOF ends the chat.
type LineReader interface {
	Prompt(p string) (string, error)
	Close() error
}

// linerReader provides line editing and persistent input history on a TTY.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &linerReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Prompt reads a line. Ctrl+C at the prompt ends the chat like Ctrl+D.
func (r *linerReader) Prompt(p string) (string, error) {
	input, err := r.line.Prompt(p)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *linerReader) Close() error {
	var buf bytes.Buffer
	_, _ = r.line.WriteHistory(&buf)
	saveErr := util.AtomicWriteFileWithDir(r.historyFile, buf.Bytes(), 0600, 0700)
	return errors.Join(saveErr, r.line.Close())
}

// scanReader reads piped input without prompting.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	return &scanReader{sc: bufio.NewScanner(in)}
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// COMMAND
// =============================================================================

type chatOptions struct {
	style styleFlags
}

func newChatCmd(a *app) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Example: `  tauros chat
  tauros chat --persona creative --tone casual
  tauros chat --template email_formal --var recipient_name=Rossi`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context(), opts)
		},
	}
	opts.style.register(cmd)
	return cmd
}

// chatState is what the slash commands change between messages.
type chatState struct {
	send cloud.SendOptions
}

// runChat runs the REPL until EOF or /quit.
func (a *app) runChat(ctx context.Context, opts chatOptions) error {
	sess, err := a.open(ctx)
	if err != nil {
		return err
	}
	sendOpts, err := a.sendOptions(opts.style)
	if err != nil {
		return err
	}
	st := &chatState{send: sendOpts}

	reader := a.opts.lines
	if reader == nil {
		if a.interactive() {
			reader = newLinerReader(a.cfg.Chat.HistoryFile)
		} else {
			reader = newScanReader(a.opts.in)
		}
	}
	defer func() {
		if err := reader.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to save input history")
		}
	}()

	a.printWelcome(sess, st)

	for {
		input, err := reader.Prompt(promptStyle.Render("tauros> "))
		if errors.Is(err, io.EOF) {
			a.printExitSummary(sess)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			keepGoing, err := a.handleSlashCommand(ctx, sess, st, input)
			if err != nil {
				fmt.Fprintf(a.opts.errOut, "%s %s\n", ErrorStyle.Render("[Errore]"), UserMessage(err))
			}
			if !keepGoing {
				a.printExitSummary(sess)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			a.printExitSummary(sess)
			return nil
		}

		a.processMessage(ctx, sess, st, input)
	}
}

// interactive reports whether input comes from a terminal.
func (a *app) interactive() bool {
	f, ok := a.opts.in.(*os.File)
	return ok && f == os.Stdin && IsTTY()
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage sends one message. Ctrl+C cancels only this reply.
func (a *app) processMessage(ctx context.Context, sess *session.Session, st *chatState, input string) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if a.interactive() {
		fmt.Fprintln(a.opts.errOut, DimStyle.Render("TaurosAI sta scrivendo..."))
	}

	reply, err := sess.SendMessage(sendCtx, input, st.send)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			fmt.Fprintln(a.opts.errOut, WarningStyle.Render("[Annullato]"))
			return
		}
		fmt.Fprintf(a.opts.out, "%s %s\n", systemLabelStyle.Render("Sistema:"), ErrorStyle.Render(UserMessage(err)))
		return
	}

	content := reply.Message.Content
	if f, ok := a.opts.out.(*os.File); ok && f == os.Stdout && IsStdoutTTY() {
		content = WrapText(content, 0)
	}
	fmt.Fprintf(a.opts.out, "%s\n%s\n\n", botLabelStyle.Render(reply.Message.Sender.DisplayName()+":"), content)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one slash command. It returns false to end the chat.
func (a *app) handleSlashCommand(ctx context.Context, sess *session.Session, st *chatState, input string) (bool, error) {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	args := fields[1:]
	w := a.opts.out
	reg := a.engine.Registry()

	switch name {
	case "/quit", "/q", "/exit":
		return false, nil

	case "/help", "/h", "/?":
		printHelp(w)

	case "/persona":
		if len(args) == 0 {
			fmt.Fprintf(w, "Personalità attuale: %s\n", HighlightStyle.Render(st.send.Persona))
			for _, p := range reg.Personas() {
				fmt.Fprintf(w, "  %s %s\n", util.PadRight(p.Key, keyColumnWidth), DimStyle.Render(p.Name))
			}
			return true, nil
		}
		if err := checkStyle(reg, args[0], ""); err != nil {
			return true, err
		}
		st.send.Persona = args[0]
		fmt.Fprintln(w, commandStyle.Render("[Personalità: "+args[0]+"]"))

	case "/tone":
		if len(args) == 0 {
			fmt.Fprintf(w, "Tono attuale: %s\n", HighlightStyle.Render(st.send.Tone))
			if p, ok := reg.Persona(st.send.Persona); ok {
				fmt.Fprintf(w, "  %s\n", DimStyle.Render(strings.Join(p.Tones(), ", ")))
			}
			return true, nil
		}
		if err := checkStyle(reg, st.send.Persona, args[0]); err != nil {
			return true, err
		}
		st.send.Tone = args[0]
		fmt.Fprintln(w, commandStyle.Render("[Tono: "+args[0]+"]"))

	case "/template":
		if len(args) == 0 {
			current := st.send.Template
			if current == "" {
				current = "nessuno"
			}
			fmt.Fprintf(w, "Template attuale: %s\n", HighlightStyle.Render(current))
			for _, t := range reg.Templates() {
				fmt.Fprintf(w, "  %s %s\n", util.PadRight(t.Key, keyColumnWidth), DimStyle.Render(strings.Join(t.Variables, ", ")))
			}
			return true, nil
		}
		if args[0] == "none" || args[0] == "off" {
			st.send.Template = ""
			fmt.Fprintln(w, commandStyle.Render("[Template disattivato]"))
			return true, nil
		}
		if _, ok := reg.Template(args[0]); !ok {
			return true, fmt.Errorf("%w: %q", prompt.ErrTemplateNotFound, args[0])
		}
		st.send.Template = args[0]
		fmt.Fprintln(w, commandStyle.Render("[Template: "+args[0]+"]"))

	case "/var":
		if len(args) == 0 {
			return true, ErrInvalidFormat("variable", "", "/var recipient_name=Rossi")
		}
		raw := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
		vars, err := parseVars([]string{raw})
		if err != nil {
			return true, err
		}
		if st.send.Variables == nil {
			st.send.Variables = prompt.Variables{}
		}
		for k, v := range vars {
			if v == "" {
				delete(st.send.Variables, k)
				continue
			}
			st.send.Variables[k] = v
		}

	case "/vars":
		printVars(w, st.send.Variables)

	case "/clear", "/c":
		if err := sess.ClearHistory(ctx); err != nil {
			return true, err
		}
		fmt.Fprintln(w, commandStyle.Render("[Conversazione cancellata]"))

	case "/history":
		limit := 10
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return true, ErrInvalidFormat("count", args[0], "/history 20")
			}
			limit = n
		}
		msgs := sess.History()
		if len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		printHistory(w, msgs, a.cfg.Prompts.MaxContentLength)

	case "/export":
		format, dir := export.FormatMarkdown, "."
		if len(args) > 0 {
			format = args[0]
		}
		if len(args) > 1 {
			dir = args[1]
		}
		path, err := a.export(sess.Export, format, dir)
		if err != nil {
			return true, err
		}
		fmt.Fprintln(w, commandStyle.Render("[Esportato in "+path+"]"))

	case "/status", "/s":
		a.printStatus(sess, st)

	case "/usage":
		stats, err := sess.UsageStats(ctx)
		if err != nil {
			return true, err
		}
		fmt.Fprintf(w, "Richieste: %s  Token: %s\n", formatCount(stats.Requests), formatCount(stats.TokensUsed))

	case "/models":
		if a.cloudAllowed() != nil {
			printModels(w, model.FallbackModels(), a.cfg.API.Model)
			fmt.Fprintln(w, DimStyle.Render("[Modalità offline: elenco predefinito]"))
			return true, nil
		}
		printModels(w, sess.AvailableModels(ctx), sess.GetStatus().Model)

	default:
		return true, &ValidationError{Field: "command", Value: name, Reason: "unknown command", Example: "/help"}
	}
	return true, nil
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

func (a *app) printWelcome(sess *session.Session, st *chatState) {
	w := a.opts.out
	fmt.Fprintln(w, TitleStyle.Render("TaurosAI"))
	fmt.Fprintln(w, SeparatorStyle.Render(strings.Repeat("─", 30)))

	status := sess.GetStatus()
	fmt.Fprintln(w, RenderKeyValue("Modello:", status.Model))
	fmt.Fprintln(w, RenderKeyValue("Personalità:", st.send.Persona+" / "+st.send.Tone))
	if st.send.Template != "" {
		fmt.Fprintln(w, RenderKeyValue("Template:", st.send.Template))
	}
	if badge := offline.StatusBadge(); badge != "" {
		fmt.Fprintln(w, RenderKeyValue("Modalità:", WarningStyle.Render(badge)+" risposte simulate"))
	} else if !status.Configured {
		fmt.Fprintln(w, WarningStyle.Render("Nessuna chiave API: usa `tauros key set` oppure --offline"))
	}
	if status.Messages > 0 {
		fmt.Fprintln(w, DimStyle.Render(fmt.Sprintf("%d messaggi dalla sessione precedente", status.Messages)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render("Scrivi un messaggio e premi Invio. Comandi: /help, /quit"))
	fmt.Fprintln(w)
}

func printHelp(w io.Writer) {
	commands := []struct{ name, desc string }{
		{"/help, /h", "Mostra questo aiuto"},
		{"/persona [chiave]", "Mostra o cambia personalità"},
		{"/tone [chiave]", "Mostra o cambia tono"},
		{"/template [chiave|none]", "Mostra, scegli o disattiva il template"},
		{"/var nome=valore", "Imposta una variabile del template"},
		{"/vars", "Mostra le variabili del template"},
		{"/clear, /c", "Cancella la conversazione"},
		{"/history [n]", "Mostra gli ultimi n messaggi"},
		{"/export [formato] [dir]", "Esporta la conversazione (json, markdown)"},
		{"/status, /s", "Stato della sessione"},
		{"/usage", "Contatori di utilizzo API"},
		{"/models", "Modelli disponibili"},
		{"/quit, /q", "Esci"},
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Comandi disponibili"))
	for _, c := range commands {
		fmt.Fprintf(w, "  %s %s\n", commandStyle.Render(util.PadRight(c.name, 24)), c.desc)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, DimStyle.Render("Ctrl+C annulla la risposta in corso, Ctrl+D esce"))
	fmt.Fprintln(w)
}

func printVars(w io.Writer, vars prompt.Variables) {
	if len(vars) == 0 {
		fmt.Fprintln(w, DimStyle.Render("[Nessuna variabile]"))
		return
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", util.PadRight(name, keyColumnWidth), vars[name])
	}
}

func (a *app) printStatus(sess *session.Session, st *chatState) {
	w := a.opts.out
	status := sess.GetStatus()
	configured := "no"
	if status.Configured {
		configured = "sì (" + sess.KeyFingerprint() + ")"
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("Stato sessione"))
	fmt.Fprintln(w, RenderKeyValue("Sessione:", status.SessionID))
	fmt.Fprintln(w, RenderKeyValue("Durata:", session.FormatDuration(status.Duration)))
	fmt.Fprintln(w, RenderKeyValue("Messaggi:", strconv.Itoa(status.Messages)))
	fmt.Fprintln(w, RenderKeyValue("Modello:", status.Model))
	fmt.Fprintln(w, RenderKeyValue("Chiave API:", configured))
	fmt.Fprintln(w, RenderKeyValue("Personalità:", st.send.Persona))
	fmt.Fprintln(w, RenderKeyValue("Tono:", st.send.Tone))
	if st.send.Template != "" {
		fmt.Fprintln(w, RenderKeyValue("Template:", st.send.Template))
	}
	fmt.Fprintln(w)
}

func (a *app) printExitSummary(sess *session.Session) {
	status := sess.GetStatus()
	fmt.Fprintln(a.opts.out)
	fmt.Fprintf(a.opts.out, "%s %d messaggi, %s\n",
		DimStyle.Render("Sessione:"), status.Messages, session.FormatDuration(status.Duration))
	fmt.Fprintln(a.opts.out, DimStyle.Render("Arrivederci!"))
}
