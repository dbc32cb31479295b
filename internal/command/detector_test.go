package command

import (
	"context"
	"errors"
	"testing"
)

func testDetector(t *testing.T) *Detector {
	t.Helper()
	d := NewDetector("hey type")
	ok := func(ctx context.Context, cmd ParsedCommand) (Result, error) {
		return Result{Success: true}, nil
	}
	if err := d.Register(Definition{
		ID:       "open-terminal",
		Triggers: []string{"open terminal"},
	}, ok); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(Definition{
		ID:       "search",
		Triggers: []string{"search for {query}"},
	}, ok); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDetector_Parse(t *testing.T) {
	d := testDetector(t)

	tests := []struct {
		name     string
		text     string
		wantKind Kind
		wantID   string
		wantConf float64
	}{
		{
			name:     "no wake phrase is dictation",
			text:     "open terminal",
			wantKind: KindDictation,
		},
		{
			name:     "wake phrase mid-word is dictation",
			text:     "hey typewriter fans",
			wantKind: KindDictation,
		},
		{
			name:     "exact command match",
			text:     "hey type open terminal",
			wantKind: KindCommand,
			wantID:   "open-terminal",
			wantConf: 1.0,
		},
		{
			name:     "case insensitive matching",
			text:     "Hey Type OPEN TERMINAL",
			wantKind: KindCommand,
			wantID:   "open-terminal",
			wantConf: 1.0,
		},
		{
			name:     "wake phrase alone is dictation",
			text:     "hey type",
			wantKind: KindDictation,
		},
		{
			name:     "wake phrase with unknown remainder is dictation",
			text:     "hey type something unrelated entirely",
			wantKind: KindDictation,
		},
		{
			name:     "trailing text makes it ambiguous",
			text:     "hey type open terminal and then some",
			wantKind: KindAmbiguous,
			wantID:   "open-terminal",
		},
		{
			name:     "trailing placeholder consumes the rest",
			text:     "hey type search for rust programming",
			wantKind: KindCommand,
			wantID:   "search",
			wantConf: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Parse(tt.text)
			if got.Kind != tt.wantKind {
				t.Fatalf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if tt.wantID != "" && got.Command.ID != tt.wantID {
				t.Errorf("Command.ID = %s, want %s", got.Command.ID, tt.wantID)
			}
			if tt.wantConf != 0 && got.Command.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Command.Confidence, tt.wantConf)
			}
		})
	}
}

func TestDetector_AmbiguousConfidence(t *testing.T) {
	d := testDetector(t)

	got := d.Parse("hey type open terminal now")
	if got.Kind != KindAmbiguous {
		t.Fatalf("Kind = %s, want ambiguous", got.Kind)
	}
	if got.Command.Confidence <= 0 || got.Command.Confidence >= 1 {
		t.Errorf("ambiguous confidence = %v, want strictly inside (0, 1)", got.Command.Confidence)
	}
	if got.Dictation != "now" {
		t.Errorf("Dictation = %q, want %q", got.Dictation, "now")
	}
}

func TestDetector_PlaceholderArgs(t *testing.T) {
	d := NewDetector("")
	if err := d.Register(Definition{
		ID:       "switch-mode",
		Triggers: []string{"switch to {mode} mode"},
	}, nil); err != nil {
		t.Fatal(err)
	}

	got := d.Parse("switch to email mode")
	if got.Kind != KindCommand {
		t.Fatalf("Kind = %s, want command", got.Kind)
	}
	if got.Command.Args["mode"] != "email" {
		t.Errorf("Args[mode] = %q, want %q", got.Command.Args["mode"], "email")
	}
}

func TestDetector_RegistrationOrderWins(t *testing.T) {
	d := NewDetector("")
	if err := d.Register(Definition{ID: "first", Triggers: []string{"do it"}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(Definition{ID: "second", Triggers: []string{"do it"}}, nil); err != nil {
		t.Fatal(err)
	}

	got := d.Parse("do it")
	if got.Command.ID != "first" {
		t.Errorf("Command.ID = %s, want first (registration order)", got.Command.ID)
	}
}

func TestDetector_DuplicateRegistration(t *testing.T) {
	d := NewDetector("")
	if err := d.Register(Definition{ID: "x", Triggers: []string{"a"}}, nil); err != nil {
		t.Fatal(err)
	}
	if err := d.Register(Definition{ID: "x", Triggers: []string{"b"}}, nil); !errors.Is(err, ErrDuplicateCommand) {
		t.Errorf("duplicate Register = %v, want ErrDuplicateCommand", err)
	}
}

func TestDetector_Unregister(t *testing.T) {
	d := testDetector(t)
	d.Unregister("open-terminal")

	if got := d.Parse("hey type open terminal"); got.Kind != KindDictation {
		t.Errorf("Kind after Unregister = %s, want dictation", got.Kind)
	}
	if defs := d.Definitions(); len(defs) != 1 || defs[0].ID != "search" {
		t.Errorf("Definitions = %v, want just search", defs)
	}
}

func TestDetector_Execute(t *testing.T) {
	d := NewDetector("")
	executed := ""
	if err := d.Register(Definition{ID: "greet", Triggers: []string{"say hello to {name}"}},
		func(ctx context.Context, cmd ParsedCommand) (Result, error) {
			executed = cmd.Args["name"]
			return Result{Success: true, Message: "greeted"}, nil
		}); err != nil {
		t.Fatal(err)
	}

	parsed := d.Parse("say hello to alice")
	res, err := d.Execute(context.Background(), parsed.Command)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.Message != "greeted" {
		t.Errorf("Result = %+v", res)
	}
	if executed != "alice" {
		t.Errorf("handler saw name %q, want alice", executed)
	}
}

func TestDetector_ExecuteErrors(t *testing.T) {
	d := NewDetector("")
	if err := d.Register(Definition{ID: "nohandler", Triggers: []string{"nothing"}}, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Execute(context.Background(), ParsedCommand{ID: "nohandler"}); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Execute without handler = %v, want ErrNoHandler", err)
	}
	if _, err := d.Execute(context.Background(), ParsedCommand{ID: "missing"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Execute unknown = %v, want ErrUnknownCommand", err)
	}
}
