package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"aichef"
	"aichef/coordinator"
	"aichef/kitchen"
)

const helpText = `Commands:
  /reset   forget the pantry, constraints, party size and conversation
  /state   show the current session state
  /key     enter a new API key
  /quit    leave
Anything else is sent to the chef.`

type turner interface {
	Turn(ctx context.Context, s *kitchen.Session, text string) (coordinator.TurnResult, error)
}

// repl drives a session from line-oriented input.
type repl struct {
	coord      turner
	session    *kitchen.Session
	requireKey bool
	in         *bufio.Scanner
	out        io.Writer
	readKey    func() (string, error)
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "AI Chef. Tell me what is in your pantry. Type /help for commands.")

	if r.requireKey && r.session.Credential() == "" {
		r.promptKey()
	}

	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}

		line := strings.TrimSpace(r.in.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.turn(ctx, line)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *repl) command(line string) (quit bool) {
	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/quit", "/exit":
		return true
	case "/reset":
		r.session.Reset()
		fmt.Fprintln(r.out, "Session reset.")
	case "/state":
		aichef.Fdump(r.out, r.session.Snapshot())
	case "/key":
		r.promptKey()
	case "/help":
		fmt.Fprintln(r.out, helpText)
	default:
		fmt.Fprintf(r.out, "Unknown command %q.\n%s\n", line, helpText)
	}
	return false
}

func (r *repl) promptKey() {
	fmt.Fprint(r.out, "API key: ")
	key, err := r.readKey()
	fmt.Fprintln(r.out)
	if err != nil {
		fmt.Fprintf(r.out, "Could not read the API key: %v\n", err)
		return
	}
	r.session.SetCredential(key)
	if r.session.Credential() == "" {
		fmt.Fprintln(r.out, "No key entered. Use /key to set one.")
	}
}

func (r *repl) turn(ctx context.Context, line string) {
	res, err := r.coord.Turn(ctx, r.session, line)
	if err != nil {
		fmt.Fprintln(r.out, coordinator.UserMessage(err))
		return
	}

	fmt.Fprintln(r.out, res.Reply)
	if res.Critique != nil {
		fmt.Fprintf(r.out, "\n--- Head chef review ---\n%s\n", res.Critique.Text)
	}
	fmt.Fprintf(r.out, "[pantry: %d items, usage: %d]\n", len(r.session.Pantry()), r.session.Usage())
}
