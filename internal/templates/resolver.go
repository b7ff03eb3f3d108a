// Package templates resolves localized message templates and button labels.
package templates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/brainytots/wa-connect/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultLanguage is used when a record has no language yet or a translation is missing.
const DefaultLanguage = "en"

var (
	// ErrUnknownKey is returned when a template key has no default-language text.
	ErrUnknownKey = errors.New("unknown template key")
	// ErrMissingParam is returned when a placeholder has no matching parameter.
	ErrMissingParam = errors.New("missing template parameter")
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Key identifies a message template.
type Key string

// Params are substituted into {placeholders} of a template.
type Params map[string]any

// entry is one template: localized texts plus an optional button set.
type entry struct {
	text    map[string]string
	buttons map[string][]string
}

// Catalog is an immutable in-memory template store.
type Catalog struct {
	entries   map[Key]entry
	languages map[string]string // normalized label -> language code
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	c := &Catalog{
		entries:   builtinEntries(),
		languages: make(map[string]string, len(languageLabels)),
	}
	for label, code := range languageLabels {
		c.languages[Normalize(label)] = code
	}
	return c
}

// Render resolves key in lang and substitutes params. The returned prompt
// includes the button labels attached to the key, if any.
func (c *Catalog) Render(key Key, lang string, params Params) (domain.Prompt, error) {
	e, ok := c.entries[key]
	if !ok {
		return domain.Prompt{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	tmpl, ok := e.text[resolveLanguage(lang)]
	if !ok {
		tmpl, ok = e.text[DefaultLanguage]
	}
	if !ok {
		return domain.Prompt{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var missing []string
	text := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return domain.Prompt{}, fmt.Errorf("%w: %s needs %s", ErrMissingParam, key, strings.Join(missing, ", "))
	}

	return domain.Prompt{Text: text, Buttons: c.Buttons(key, lang)}, nil
}

// Buttons returns the button labels attached to key in lang, or nil.
func (c *Catalog) Buttons(key Key, lang string) []string {
	e, ok := c.entries[key]
	if !ok || e.buttons == nil {
		return nil
	}
	labels, ok := e.buttons[resolveLanguage(lang)]
	if !ok {
		labels = e.buttons[DefaultLanguage]
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// LanguageFor maps a language label (e.g. "English", "हिंदी") to its code.
func (c *Catalog) LanguageFor(label string) (string, bool) {
	code, ok := c.languages[Normalize(label)]
	return code, ok
}

// Validate checks every button set against the gateway option limit and
// verifies that localized sets line up index for index.
func (c *Catalog) Validate(maxOptions int) error {
	for key, e := range c.entries {
		if e.buttons == nil {
			continue
		}
		want := len(e.buttons[DefaultLanguage])
		if want == 0 {
			return fmt.Errorf("template %s: no %s buttons", key, DefaultLanguage)
		}
		for lang, labels := range e.buttons {
			if len(labels) > maxOptions {
				return fmt.Errorf("template %s/%s: %d options exceed gateway limit %d", key, lang, len(labels), maxOptions)
			}
			if len(labels) != want {
				return fmt.Errorf("template %s/%s: %d options, %s has %d", key, lang, len(labels), DefaultLanguage, want)
			}
		}
	}
	return nil
}

func resolveLanguage(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// Normalize canonicalizes user input for label comparison: NFC, case-folded,
// inner whitespace collapsed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// Match returns the index of the option equal to input after normalization.
func Match(input string, options []string) (int, bool) {
	in := Normalize(input)
	if in == "" {
		return -1, false
	}
	for i, opt := range options {
		if Normalize(opt) == in {
			return i, true
		}
	}
	return -1, false
}
