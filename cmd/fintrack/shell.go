// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/router"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/session"
	"github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/frontend/terminal"
)

var (
	shellPlain      bool
	shellAccessible bool

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive FinTrack client",
		Long: `Opens the client against api.base_url. Each page is printed with
numbered links and the actions it offers. Type "help" for commands.`,
		Args: cobra.NoArgs,
		RunE: runShell,
	}
)

func init() {
	shellCmd.Flags().BoolVar(&shellPlain, "plain", false, "Ask for action fields line by line instead of with forms")
	shellCmd.Flags().BoolVar(&shellAccessible, "accessible", false, "Use screen-reader friendly forms")
}

func runShell(cmd *cobra.Command, _ []string) error {
	logger := newLogger("fintrack", true)
	defer logger.Close()

	out := cmd.OutOrStdout()
	console := terminal.NewConsole(out)
	screen := terminal.NewScreen(console)
	lines := terminal.NewLinePrompter(cmd.InOrStdin(), out)

	var prompter terminal.Prompter = lines
	if !shellPlain && terminal.IsTerminal(os.Stdin) && console.TTY() {
		prompter = terminal.FormPrompter{Accessible: shellAccessible}
	}

	app, err := frontend.New(frontend.Options{
		Config:    cfg,
		Container: screen,
		Renderer:  terminal.NewToasts(console),
		Logger:    logger,
		Tracer:    tracing.Tracer(),
	})
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := &repl{app: app, screen: screen, console: console, prompter: prompter, in: lines.Reader()}
	err = r.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// =============================================================================
// REPL
// =============================================================================

const shellHelp = `Commands:
  go <path>           open a location, e.g. "go /transactions?type=expense"
  click <n>           follow link n of the current page
  do <action>         run an action of the current page
  back, forward       move through history
  show                print the current page again
  reload              render the current page again
  notes               list active notifications
  dismiss <id>        remove a notification
  act <id> <n>        run action n of a notification
  whoami              show the session
  help                show this text
  quit                leave`

// repl reads commands and drives an App. Pages print themselves through
// the screen; the REPL only reports its own results.
type repl struct {
	app      *frontend.App
	screen   *terminal.Screen
	console  *terminal.Console
	prompter terminal.Prompter
	in       *bufio.Reader
}

// Run starts the app and reads commands until quit, end of input or ctx
// cancellation.
func (r *repl) Run(ctx context.Context) error {
	r.app.Start(ctx)
	for {
		r.console.Printf("%s", r.console.Styles().Key.Render("fintrack> "))
		line, err := r.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.console.Println("")
				return nil
			}
			return err
		}
		quit, err := r.exec(ctx, line)
		if err != nil {
			r.console.Println(r.console.Styles().Error.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.in.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && (res.line == "" || !errors.Is(res.err, io.EOF)) {
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}

var errUsage = errors.New("usage")

func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	cmd, rest := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		r.console.Println(shellHelp)
	case "go":
		if len(rest) != 1 {
			return false, fmt.Errorf("%w: go <path>", errUsage)
		}
		r.app.Router.Navigate(ctx, rest[0], router.NavigateOptions{})
	case "click":
		return false, r.click(ctx, rest)
	case "do":
		if len(rest) != 1 {
			return false, fmt.Errorf("%w: do <action>", errUsage)
		}
		return false, r.do(ctx, rest[0])
	case "back":
		if !r.app.Router.Back() {
			r.console.Println("Nothing to go back to.")
		}
	case "forward":
		if !r.app.Router.Forward() {
			r.console.Println("Nothing to go forward to.")
		}
	case "show":
		v, ok := r.screen.View()
		if !ok {
			return false, errors.New("nothing is shown")
		}
		r.console.Println(terminal.RenderView(r.console.Styles(), v))
	case "reload":
		r.app.Router.Navigate(ctx, r.app.Router.Current(), router.NavigateOptions{Replace: true, Force: true})
	case "notes":
		r.notes()
	case "dismiss":
		id, err := parseID(rest, 1)
		if err != nil {
			return false, fmt.Errorf("%w: dismiss <id>", errUsage)
		}
		if !r.app.Notifier.Remove(id) {
			return false, fmt.Errorf("no notification #%d", id)
		}
	case "act":
		if len(rest) != 2 {
			return false, fmt.Errorf("%w: act <id> <n>", errUsage)
		}
		id, err := parseID(rest, 2)
		if err != nil {
			return false, err
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return false, fmt.Errorf("%w: act <id> <n>", errUsage)
		}
		return false, r.app.Notifier.Invoke(id, n)
	case "whoami":
		r.whoami()
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, nil
}

func (r *repl) click(ctx context.Context, args []string) error {
	v, ok := r.screen.View()
	if !ok {
		return errors.New("nothing is shown")
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: click <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(v.Links) {
		return fmt.Errorf("choose a link between 1 and %d", len(v.Links))
	}
	r.app.Click(ctx, v.Links[n-1].Href)
	return nil
}

func (r *repl) do(ctx context.Context, key string) error {
	v, ok := r.screen.View()
	if !ok {
		return errors.New("nothing is shown")
	}
	act, ok := v.Action(key)
	if !ok {
		return fmt.Errorf("%w: %s", frontend.ErrNoAction, key)
	}
	in, err := r.prompter.Ask(ctx, act.Label, act.Fields)
	if err != nil {
		if errors.Is(err, terminal.ErrAborted) {
			r.console.Println("Cancelled.")
			return nil
		}
		return err
	}
	return r.app.Do(ctx, v, key, in)
}

func (r *repl) notes() {
	active := r.app.Notifier.Active()
	if len(active) == 0 {
		r.console.Println("No notifications.")
		return
	}
	st := r.console.Styles()
	for _, n := range active {
		r.console.Println(terminal.FormatNotification(st, n))
	}
}

func (r *repl) whoami() {
	st := r.app.Session.State()
	u := r.app.Session.User()
	if st != session.Authenticated || u == nil {
		r.console.Printf("Not signed in (%s).\n", st)
		return
	}
	r.console.Printf("%s <%s> (%s)\n", u.DisplayName(), u.Email, st)
}

func parseID(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, errUsage
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad notification id %q", args[0])
	}
	return id, nil
}
