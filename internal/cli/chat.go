package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/aretw0/stategraph/internal/presentation/tui"
	"github.com/aretw0/stategraph/pkg/agent"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/ports"
)

// ChatOptions configure RunChat.
type ChatOptions struct {
	// SessionID resumes a stored conversation; a new ID is generated when empty.
	SessionID string
	In        io.Reader
	Out       io.Writer
	Profile   termenv.Profile
	// Render formats assistant replies, see tui.NewRenderer.
	Render func(string) (string, error)
}

var quitCommands = map[string]bool{"q": true, "quit": true, "exit": true}

// RunChat reads user lines from In and answers each one with one run of the
// chat graph. The conversation lives in the session store between turns.
func RunChat(ctx context.Context, app *App, r ports.Runner, opts ChatOptions) error {
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Render == nil {
		opts.Render = tui.NewRenderer(false)
	}
	app.Logger.Info("chat session", "session_id", opts.SessionID, "graph", r.Graph().Name())
	fmt.Fprintf(opts.Out, ">>> Session '%s'. Type 'quit' to leave.\n", opts.SessionID)

	scanner := bufio.NewScanner(opts.In)
	for {
		fmt.Fprint(opts.Out, tui.Speaker("You", opts.Profile))
		if !scanner.Scan() {
			fmt.Fprintln(opts.Out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if quitCommands[strings.ToLower(line)] {
			return nil
		}

		reply, err := chatTurn(ctx, app, r, opts.SessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(opts.Out, ">>> Error: %v\n", err)
			continue
		}
		out, err := opts.Render(reply)
		if err != nil {
			out = reply
		}
		fmt.Fprintf(opts.Out, "%s%s\n", tui.Speaker("Bot", opts.Profile), strings.TrimSpace(out))
	}
}

func chatTurn(ctx context.Context, app *App, r ports.Runner, sessionID, line string) (string, error) {
	res, err := app.Sessions.Continue(ctx, sessionID, r, map[string]any{
		agent.FieldMessages: []domain.Message{domain.UserMessage(line)},
	})
	if err != nil {
		return "", err
	}
	last, ok, err := res.State.LastMessage(agent.FieldMessages)
	if err != nil {
		return "", err
	}
	if !ok || last.Role != domain.RoleAssistant {
		return "", fmt.Errorf("no reply produced")
	}
	if last.IsError {
		return "", fmt.Errorf("generator failed: %s", last.Content)
	}
	return last.Content, nil
}
