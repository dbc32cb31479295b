package injection

import "github.com/atotto/clipboard"

// SystemClipboard is the real clipboard via atotto/clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error) {
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}
