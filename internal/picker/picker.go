// Package picker asks the user for a folder or a file.
package picker

import (
	"errors"
	"fmt"

	"github.com/ncruces/zenity"
)

// ErrCancelled is returned when the user dismisses the dialog.
var ErrCancelled = errors.New("selection cancelled")

// Picker blocks until the user confirms or cancels a selection.
type Picker interface {
	PickFolder() (string, error)
	PickFile() (string, error)
}

// Dialog opens native dialogs through zenity.
type Dialog struct {
	// StartDir is where dialogs open; empty uses the platform default.
	StartDir string
}

// NewDialog returns a dialog picker rooted at startDir.
func NewDialog(startDir string) *Dialog {
	return &Dialog{StartDir: startDir}
}

// PickFolder asks for a destination directory.
func (d *Dialog) PickFolder() (string, error) {
	path, err := zenity.SelectFile(d.options("Select folder to save incoming file", zenity.Directory())...)
	return result(path, err)
}

// PickFile asks for the file to send.
func (d *Dialog) PickFile() (string, error) {
	path, err := zenity.SelectFile(d.options("Select file to send")...)
	return result(path, err)
}

func (d *Dialog) options(title string, extra ...zenity.Option) []zenity.Option {
	opts := []zenity.Option{zenity.Title(title)}
	if d.StartDir != "" {
		opts = append(opts, zenity.Filename(d.StartDir))
	}
	return append(opts, extra...)
}

func result(path string, err error) (string, error) {
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrCancelled
	}
	if err != nil {
		return "", fmt.Errorf("file dialog: %w", err)
	}
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}
