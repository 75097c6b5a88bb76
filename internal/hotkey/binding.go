// Package hotkey parses hotkey specifications and defines the trigger source
// contract the coordinator polls.
package hotkey

import (
	"fmt"
	"strings"
)

// Modifier is a bit in a modifier set.
type Modifier uint8

const (
	Ctrl Modifier = 1 << iota
	Shift
	Alt
	Meta
)

var modifierNames = []struct {
	mod  Modifier
	name string
}{
	{Ctrl, "ctrl"},
	{Shift, "shift"},
	{Alt, "alt"},
	{Meta, "meta"},
}

// Has reports whether m contains every bit of other.
func (m Modifier) Has(other Modifier) bool {
	return m&other == other
}

// Key is a platform-neutral key code.
type Key uint8

const (
	KeyNone Key = iota
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
	KeyG
	KeyH
	KeyI
	KeyJ
	KeyK
	KeyL
	KeyM
	KeyN
	KeyO
	KeyP
	KeyQ
	KeyR
	KeyS
	KeyT
	KeyU
	KeyV
	KeyW
	KeyX
	KeyY
	KeyZ
	Key0
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

var keyNames = func() map[Key]string {
	names := make(map[Key]string)
	for i := 0; i < 26; i++ {
		names[KeyA+Key(i)] = string(rune('a' + i))
	}
	for i := 0; i < 10; i++ {
		names[Key0+Key(i)] = string(rune('0' + i))
	}
	for i := 0; i < 12; i++ {
		names[KeyF1+Key(i)] = fmt.Sprintf("f%d", i+1)
	}
	return names
}()

var keyTokens = func() map[string]Key {
	tokens := make(map[string]Key, len(keyNames))
	for key, name := range keyNames {
		tokens[name] = key
	}
	return tokens
}()

var modifierTokens = map[string]Modifier{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"shift":   Shift,
	"alt":     Alt,
	"meta":    Meta,
	"cmd":     Meta,
	"command": Meta,
	"win":     Meta,
	"windows": Meta,
}

func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// Binding is an immutable modifier set plus exactly one key.
type Binding struct {
	mods Modifier
	key  Key
}

// NewBinding builds a binding from already-decoded parts.
func NewBinding(mods Modifier, key Key) (Binding, error) {
	if _, ok := keyNames[key]; !ok {
		return Binding{}, &ParseError{Input: key.String(), Reason: "no key code given"}
	}
	return Binding{mods: mods, key: key}, nil
}

// Modifiers returns the modifier set.
func (b Binding) Modifiers() Modifier { return b.mods }

// Key returns the key code.
func (b Binding) Key() Key { return b.key }

// String returns the canonical spec, e.g. "ctrl+shift+r".
func (b Binding) String() string {
	parts := make([]string, 0, 5)
	for _, m := range modifierNames {
		if b.mods.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, b.key.String())
	return strings.Join(parts, "+")
}

// ParseError reports a malformed hotkey specification.
type ParseError struct {
	Input  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("hotkey %q: %s: %q", e.Input, e.Reason, e.Token)
	}
	return fmt.Sprintf("hotkey %q: %s", e.Input, e.Reason)
}

// Parse decodes "modifier+modifier+key". Tokens are trimmed and case-insensitive.
// When several key tokens appear the last one wins.
func Parse(spec string) (Binding, error) {
	var mods Modifier
	key := KeyNone
	for _, part := range strings.Split(spec, "+") {
		token := strings.ToLower(strings.TrimSpace(part))
		if mod, ok := modifierTokens[token]; ok {
			mods |= mod
			continue
		}
		k, ok := keyTokens[token]
		if !ok {
			return Binding{}, &ParseError{Input: spec, Token: token, Reason: "unknown key"}
		}
		key = k
	}
	if key == KeyNone {
		return Binding{}, &ParseError{Input: spec, Reason: "no key code given"}
	}
	return Binding{mods: mods, key: key}, nil
}

// MustParse is Parse for compile-time constants.
func MustParse(spec string) Binding {
	b, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return b
}
