package funcs

import (
	"bytes"
	"testing"
	"text/template"

	"github.com/stretchr/testify/require"
)

// Renders through a real template so the whole func map, including the
// instantiated generics, is exercised the way the mailer uses it.
func renderTemplate(t *testing.T, text string, data any) string {
	t.Helper()

	ts, err := template.New("test").Funcs(TemplateFuncs).Parse(text)
	require.NoError(t, err)

	var buf bytes.Buffer
	err = ts.Execute(&buf, data)
	require.NoError(t, err)

	return buf.String()
}

func TestTemplateFuncs_FormatCoins(t *testing.T) {
	out := renderTemplate(t, `{{formatCoins .Amount}}`, map[string]any{
		"Amount": int64(10000),
	})
	require.Equal(t, "10,000 coins", out)

	out = renderTemplate(t, `{{formatCoins .Amount}}`, map[string]any{
		"Amount": int64(50),
	})
	require.Equal(t, "50 coins", out)
}

func TestTemplateFuncs_FormatInt(t *testing.T) {
	out := renderTemplate(t, `{{formatInt .Count}}`, map[string]any{
		"Count": 1234567,
	})
	require.Equal(t, "1,234,567", out)
}

func TestCapitalize(t *testing.T) {
	require.Equal(t, "Insufficient balance", Capitalize("insufficient balance"))
	require.Equal(t, "Already capitalized", Capitalize("Already capitalized"))
	require.Equal(t, "", Capitalize(""))
}
