package hotkey

import (
	"context"
	"sync"
	"unicode"

	"github.com/eiannone/keyboard"
	"github.com/rs/zerolog/log"
)

// KeyName translates a terminal key event into a physical key name. The
// terminal cannot tell the numpad apart, so digits map to DigitN.
func KeyName(ch rune, key keyboard.Key) (string, bool) {
	switch key {
	case keyboard.KeyInsert:
		return "Insert", true
	case keyboard.KeyPgup:
		return "PageUp", true
	case keyboard.KeyPgdn:
		return "PageDown", true
	case keyboard.KeyHome:
		return "Home", true
	case keyboard.KeyEnd:
		return "End", true
	case keyboard.KeyDelete:
		return "Delete", true
	case keyboard.KeySpace:
		return "Space", true
	case keyboard.KeyEnter:
		return "Enter", true
	case keyboard.KeyTab:
		return "Tab", true
	case keyboard.KeyF1:
		return "F1", true
	case keyboard.KeyF2:
		return "F2", true
	case keyboard.KeyF3:
		return "F3", true
	case keyboard.KeyF4:
		return "F4", true
	}
	switch {
	case ch >= '0' && ch <= '9':
		return "Digit" + string(ch), true
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		return "Key" + string(unicode.ToUpper(ch)), true
	}
	switch ch {
	case '[':
		return "BracketLeft", true
	case ']':
		return "BracketRight", true
	case '\'':
		return "Quote", true
	case '.':
		return "Period", true
	case '`':
		return "Backquote", true
	case ';':
		return "Semicolon", true
	case ',':
		return "Comma", true
	case '\\':
		return "IntlBackslash", true
	case '-':
		return "Minus", true
	case '=':
		return "Equal", true
	case '/':
		return "Slash", true
	case ' ':
		return "Space", true
	}
	return "", false
}

// Terminal reads raw key presses from the controlling terminal and emits key
// names. Ctrl+C and Esc end the stream with "Quit".
type Terminal struct {
	once sync.Once
}

// Quit is emitted once when the user asks to exit from the terminal.
const Quit = "Quit"

// Run opens the terminal in raw mode and sends key names to out until ctx is
// done or the terminal is closed.
func (t *Terminal) Run(ctx context.Context, out chan<- string) error {
	events, err := keyboard.GetKeys(16)
	if err != nil {
		return err
	}
	defer t.Close()
	log.Info().Str("tag", "INPUT").Msg("terminal hotkeys active (Esc or Ctrl+C quits)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return ev.Err
			}
			name, ok := eventName(ev)
			if !ok {
				continue
			}
			select {
			case out <- name:
			case <-ctx.Done():
				return nil
			}
			if name == Quit {
				return nil
			}
		}
	}
}

// eventName maps Ctrl+C and Esc to Quit and everything else through KeyName.
func eventName(ev keyboard.KeyEvent) (string, bool) {
	if ev.Key == keyboard.KeyCtrlC || ev.Key == keyboard.KeyEsc {
		return Quit, true
	}
	return KeyName(ev.Rune, ev.Key)
}

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() {
	t.once.Do(func() { _ = keyboard.Close() })
}
