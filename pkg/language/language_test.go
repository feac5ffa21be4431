package language_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
)

func TestParseBuiltin(t *testing.T) {
	t.Parallel()

	lang, err := language.Parse(" Python ")
	require.NoError(t, err)
	assert.Equal(t, language.Python, lang.Name)
	assert.Equal(t, "Python", lang.EnryName)
	assert.Equal(t, []string{".py"}, lang.Extensions)
}

func TestParseEnryAlias(t *testing.T) {
	t.Parallel()

	lang, err := language.Parse("go")
	require.NoError(t, err)
	assert.Equal(t, "Go", lang.EnryName)
	assert.Contains(t, lang.Extensions, ".go")
}

func TestParseUnknown(t *testing.T) {
	t.Parallel()

	_, err := language.Parse("no-such-language-anywhere")
	require.ErrorIs(t, err, language.ErrUnknownLanguage)

	_, err = language.Parse("")
	require.ErrorIs(t, err, language.ErrUnknownLanguage)
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"java", "kotlin", "python", "text"}, language.Builtin())
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lang  string
		extra []string
		path  string
		want  bool
	}{
		{name: "python source", lang: language.Python, path: "src/app.py", want: true},
		{name: "python upper-case extension", lang: language.Python, path: "src/APP.PY", want: true},
		{name: "python vendored", lang: language.Python, path: "vendor/lib.py", want: true},
		{name: "python markdown", lang: language.Python, path: "README.md", want: false},
		{name: "kotlin script", lang: language.Kotlin, path: "build.gradle.kts", want: true},
		{name: "kotlin source", lang: language.Kotlin, path: "app/Main.kt", want: true},
		{name: "java is not kotlin", lang: language.Kotlin, path: "app/Main.java", want: false},
		{name: "extra extension", lang: language.Python, extra: []string{"pyi"}, path: "stubs/app.pyi", want: true},
		{name: "text", lang: language.Text, path: "notes/todo.txt", want: true},
		{name: "empty path", lang: language.Java, path: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			filter := language.NewFilter(language.MustParse(tt.lang), tt.extra...)
			assert.Equal(t, tt.want, filter.Match(tt.path))
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { language.MustParse("no-such-language-anywhere") })
}
