package injection

import (
	"context"
	"fmt"
	"time"

	"github.com/micmonay/keybd_event"
)

// KeybdTyper simulates keystrokes through uinput/CoreGraphics via
// keybd_event.
type KeybdTyper struct{}

func NewKeybdTyper() KeybdTyper { return KeybdTyper{} }

func (KeybdTyper) TypeText(ctx context.Context, text string, delay time.Duration) error {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("keyboard binding: %w", err)
	}

	for _, r := range text {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		code, shift, ok := keyFor(r)
		if !ok {
			return fmt.Errorf("no keycode for %q", r)
		}

		kb.SetKeys(code)
		kb.HasSHIFT(shift)
		if err := kb.Press(); err != nil {
			return fmt.Errorf("key press: %w", err)
		}
		if err := kb.Release(); err != nil {
			return fmt.Errorf("key release: %w", err)
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

func (KeybdTyper) PasteChord(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return fmt.Errorf("keyboard binding: %w", err)
	}
	kb.SetKeys(keybd_event.VK_V)
	kb.HasCTRL(true)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("paste chord: %w", err)
	}
	return nil
}

var letterKeys = map[rune]int{
	'a': keybd_event.VK_A, 'b': keybd_event.VK_B, 'c': keybd_event.VK_C,
	'd': keybd_event.VK_D, 'e': keybd_event.VK_E, 'f': keybd_event.VK_F,
	'g': keybd_event.VK_G, 'h': keybd_event.VK_H, 'i': keybd_event.VK_I,
	'j': keybd_event.VK_J, 'k': keybd_event.VK_K, 'l': keybd_event.VK_L,
	'm': keybd_event.VK_M, 'n': keybd_event.VK_N, 'o': keybd_event.VK_O,
	'p': keybd_event.VK_P, 'q': keybd_event.VK_Q, 'r': keybd_event.VK_R,
	's': keybd_event.VK_S, 't': keybd_event.VK_T, 'u': keybd_event.VK_U,
	'v': keybd_event.VK_V, 'w': keybd_event.VK_W, 'x': keybd_event.VK_X,
	'y': keybd_event.VK_Y, 'z': keybd_event.VK_Z,
}

var digitKeys = map[rune]int{
	'0': keybd_event.VK_0, '1': keybd_event.VK_1, '2': keybd_event.VK_2,
	'3': keybd_event.VK_3, '4': keybd_event.VK_4, '5': keybd_event.VK_5,
	'6': keybd_event.VK_6, '7': keybd_event.VK_7, '8': keybd_event.VK_8,
	'9': keybd_event.VK_9,
}

var punctKeys = map[rune]struct {
	code  int
	shift bool
}{
	' ':  {keybd_event.VK_SPACE, false},
	'\n': {keybd_event.VK_ENTER, false},
	'\t': {keybd_event.VK_TAB, false},
	'.':  {keybd_event.VK_DOT, false},
	',':  {keybd_event.VK_COMMA, false},
	'-':  {keybd_event.VK_MINUS, false},
	'=':  {keybd_event.VK_EQUAL, false},
	';':  {keybd_event.VK_SEMICOLON, false},
	'\'': {keybd_event.VK_APOSTROPHE, false},
	'/':  {keybd_event.VK_SLASH, false},
	'\\': {keybd_event.VK_BACKSLASH, false},
	'?':  {keybd_event.VK_SLASH, true},
	'!':  {keybd_event.VK_1, true},
	':':  {keybd_event.VK_SEMICOLON, true},
	'"':  {keybd_event.VK_APOSTROPHE, true},
}

// keyFor maps a codepoint to a US-layout keycode plus shift state.
func keyFor(r rune) (code int, shift bool, ok bool) {
	if code, ok := letterKeys[r]; ok {
		return code, false, true
	}
	if 'A' <= r && r <= 'Z' {
		if code, ok := letterKeys[r+('a'-'A')]; ok {
			return code, true, true
		}
	}
	if code, ok := digitKeys[r]; ok {
		return code, false, true
	}
	if p, ok := punctKeys[r]; ok {
		return p.code, p.shift, true
	}
	return 0, false, false
}
