package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"bare object",
			`{"fake_score": 42}`,
			`{"fake_score": 42}`,
		},
		{
			"diagnostics around payload",
			"Loading model weights...\nWARNING: CUDA not available\n{\"fake_score\": 42, \"method\": \"cnn\"}\ndone in 1.2s\n",
			`{"fake_score": 42, "method": "cnn"}`,
		},
		{
			"nested objects",
			`log line {"a": {"b": {"c": 1}}, "d": 2} trailing`,
			`{"a": {"b": {"c": 1}}, "d": 2}`,
		},
		{
			"braces inside strings",
			`{"msg": "unbalanced } { inside", "ok": true}`,
			`{"msg": "unbalanced } { inside", "ok": true}`,
		},
		{
			"escaped quotes inside strings",
			`{"msg": "he said \"}\"", "ok": true}`,
			`{"msg": "he said \"}\"", "ok": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, in := range []string{"", "no json here", "{\"unterminated\": 1"} {
		_, err := ExtractJSON([]byte(in))
		assert.ErrorIs(t, err, ErrNoJSON, "input %q", in)
	}
}
