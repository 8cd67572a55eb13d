package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "segment array", raw: `[{"transcription":"hello"},{"transcription":"there"},{"transcription":"friend"}]`, want: "hello there friend"},
		{name: "single segment", raw: `[{"transcription":"only"}]`, want: "only"},
		{name: "empty array", raw: `[]`, want: ""},
		{name: "plain text", raw: "Alex: hi", want: "Alex: hi"},
		{name: "broken json", raw: `[{"transcription":`, want: `[{"transcription":`},
		{name: "bracketed prose", raw: "[inaudible] okay", want: "[inaudible] okay"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Format(tc.raw))
		})
	}
}
