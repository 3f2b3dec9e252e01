package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_ValuePatterns(t *testing.T) {
	r := Default()

	assert.Equal(t, "key is ********", r.RedactString("key is sk-abcdefghijklmnopqrstuvwxyz123456"))
	assert.Equal(t, "plain text", r.RedactString("plain text"))
	assert.Equal(t, "tok ********", r.RedactString("tok ghp_abcdefghijklmnopqrstuvwxyz"))
}

func TestRedactor_KeyNameMasksWholeValue(t *testing.T) {
	r := Default()

	in := map[string]any{
		"api_key":  "not-even-secret-shaped",
		"Password": "hunter2",
		"note":     "nothing sensitive here",
	}
	out := r.RedactValue(in).(map[string]any)

	assert.Equal(t, maskValue, out["api_key"])
	assert.Equal(t, maskValue, out["Password"])
	assert.Equal(t, "nothing sensitive here", out["note"])
}

func TestRedactor_RecursesNestedStructures(t *testing.T) {
	r := Default()

	in := map[string]any{
		"headers": map[string]any{
			"Authorization": "Bearer whatever",
		},
		"args": []any{
			"ordinary",
			map[string]any{"secret": "shh"},
		},
	}
	out := r.RedactValue(in).(map[string]any)

	headers := out["headers"].(map[string]any)
	assert.Equal(t, maskValue, headers["Authorization"])

	args := out["args"].([]any)
	assert.Equal(t, "ordinary", args[0])
	nested := args[1].(map[string]any)
	assert.Equal(t, maskValue, nested["secret"])
}

func TestNew_CustomPatterns(t *testing.T) {
	r, err := New(Config{
		ValuePatterns: []string{`zz-[0-9]{4}`},
		KeyPattern:    `custom`,
	})
	require.NoError(t, err)

	assert.Equal(t, "id ********", r.RedactString("id zz-1234"))
	assert.Equal(t, "sk-abcdefghijklmnopqrstuvwxyz123456", r.RedactString("sk-abcdefghijklmnopqrstuvwxyz123456"))

	out := r.RedactValue(map[string]any{"custom_field": "value", "other": "value"}).(map[string]any)
	assert.Equal(t, maskValue, out["custom_field"])
	assert.Equal(t, "value", out["other"])
}

func TestNew_InvalidPatternErrors(t *testing.T) {
	_, err := New(Config{ValuePatterns: []string{"(unclosed"}})
	assert.Error(t, err)
}
