package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSpeakerSegments(t *testing.T) {
	text := "Alex: Hi there\n\n  Jordan:   How are you?  \nno speaker line\r\nAlex: time is 10:30"

	segments := GetSpeakerSegments(text)

	require.Len(t, segments, 4)
	assert.Equal(t, Segment{Speaker: "Alex", Content: "Hi there"}, segments[0])
	assert.Equal(t, Segment{Speaker: "Jordan", Content: "How are you?"}, segments[1])
	assert.Equal(t, Segment{Content: "no speaker line"}, segments[2])
	assert.Equal(t, Segment{Speaker: "Alex", Content: "time is 10:30"}, segments[3])
}

func TestGetSpeakerSegments_Empty(t *testing.T) {
	assert.Empty(t, GetSpeakerSegments(""))
	assert.Empty(t, GetSpeakerSegments("\n  \n\t\n"))
}

func TestGetSpeakerSegments_Idempotent(t *testing.T) {
	inputs := []string{
		FallbackTranscript,
		"A: one\nB: two\nplain",
		": leading colon\nA:\n  :  \nX : spaced speaker",
		"A: b: c\nsingle",
	}

	for _, in := range inputs {
		first := GetSpeakerSegments(in)
		second := GetSpeakerSegments(Join(first))
		assert.Equal(t, first, second, "input %q", in)
	}
}

func TestSpeakers(t *testing.T) {
	segments := GetSpeakerSegments(FallbackTranscript)
	assert.Equal(t, []string{"Alex", "Jordan"}, Speakers(segments))
}
