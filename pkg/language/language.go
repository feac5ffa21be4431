// Package language decides which changed paths belong to the programming
// language a mining run tracks.
package language

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/src-d/enry/v2"
)

// ErrUnknownLanguage is returned when a language name is neither a built-in
// language nor a language known to enry.
var ErrUnknownLanguage = errors.New("unknown language")

// Built-in language names.
const (
	Kotlin = "kotlin"
	Java   = "java"
	Python = "python"
	Text   = "text"
)

// Language describes a tracked language: its canonical lower-case name, the
// name enry uses for it and the file extensions that identify it.
type Language struct {
	Name       string
	EnryName   string
	Extensions []string
}

var builtin = map[string]Language{
	Kotlin: {Name: Kotlin, EnryName: "Kotlin", Extensions: []string{".kt", ".kts"}},
	Java:   {Name: Java, EnryName: "Java", Extensions: []string{".java"}},
	Python: {Name: Python, EnryName: "Python", Extensions: []string{".py"}},
	Text:   {Name: Text, EnryName: "Text", Extensions: []string{".txt"}},
}

// Builtin lists the built-in language names in sorted order.
func Builtin() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Parse resolves a language name. Built-in names win; anything else is looked
// up as an enry alias ("go", "c++", "typescript", ...).
func Parse(name string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Language{}, fmt.Errorf("%w: empty name", ErrUnknownLanguage)
	}

	if lang, ok := builtin[key]; ok {
		return cloneLanguage(lang), nil
	}

	enryName, ok := enry.GetLanguageByAlias(key)
	if !ok {
		return Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}

	return Language{
		Name:       key,
		EnryName:   enryName,
		Extensions: normalizeExtensions(enry.GetLanguageExtensions(enryName)),
	}, nil
}

// MustParse is Parse for names known to be valid.
func MustParse(name string) Language {
	lang, err := Parse(name)
	if err != nil {
		panic(err)
	}

	return lang
}

func cloneLanguage(lang Language) Language {
	lang.Extensions = slices.Clone(lang.Extensions)

	return lang
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))

	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		if !slices.Contains(out, ext) {
			out = append(out, ext)
		}
	}

	return out
}

// Filter matches changed paths against a tracked language.
type Filter struct {
	lang       Language
	extensions []string
}

// NewFilter builds a filter for lang. Extra extensions extend the language's
// own list.
func NewFilter(lang Language, extraExtensions ...string) *Filter {
	return &Filter{
		lang:       lang,
		extensions: normalizeExtensions(append(slices.Clone(lang.Extensions), extraExtensions...)),
	}
}

// Language returns the tracked language.
func (f *Filter) Language() Language {
	return f.lang
}

// Match reports whether path is a source file of the tracked language. A path
// matches by extension first and then by the language enry infers from its
// name. Vendored and generated paths count like any other.
func (f *Filter) Match(filePath string) bool {
	if filePath == "" {
		return false
	}

	base := strings.ToLower(path.Base(filePath))
	for _, ext := range f.extensions {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}

	if f.lang.EnryName == "" {
		return false
	}

	detected, _ := enry.GetLanguageByExtension(filePath)

	return detected == f.lang.EnryName
}
