package daemon

import (
	"context"

	"github.com/voxpipe/voxpipe/internal/command"
	"github.com/voxpipe/voxpipe/internal/injection"
)

// registerBuiltins wires the commands every installation gets. They act on
// the focused field through the same injector dictation uses.
func registerBuiltins(d *command.Detector, inj *injection.Injector) {
	injectLiteral := func(text string) command.Handler {
		return func(ctx context.Context, _ command.ParsedCommand) (command.Result, error) {
			if _, err := inj.Inject(ctx, text); err != nil {
				return command.Result{}, err
			}
			return command.Result{Success: true}, nil
		}
	}

	d.Register(command.Definition{
		ID:          "new-line",
		Triggers:    []string{"new line", "newline"},
		Description: "Insert a line break",
	}, injectLiteral("\n"))

	d.Register(command.Definition{
		ID:          "new-paragraph",
		Triggers:    []string{"new paragraph"},
		Description: "Insert a paragraph break",
	}, injectLiteral("\n\n"))

	d.Register(command.Definition{
		ID:          "type-literal",
		Triggers:    []string{"type {text}", "write {text}"},
		Description: "Inject the spoken text verbatim, skipping processing",
	}, func(ctx context.Context, cmd command.ParsedCommand) (command.Result, error) {
		text := cmd.Args["text"]
		if text == "" {
			return command.Result{Success: true}, nil
		}
		if _, err := inj.Inject(ctx, text); err != nil {
			return command.Result{}, err
		}
		return command.Result{Success: true, Message: text}, nil
	})
}
