package transcribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Shape
	}{
		{name: "segments", body: `[{"transcription":"a"}]`, want: ShapeSegments},
		{name: "text", body: `{"text":"a"}`, want: ShapeText},
		{name: "result", body: `{"result":{"transcription":"a"}}`, want: ShapeResultTranscription},
		{name: "transcription", body: `{"transcription":"a"}`, want: ShapeTranscription},
		{name: "text wins over transcription", body: `{"transcription":"b","text":"a"}`, want: ShapeText},
		{name: "result wins over transcription", body: `{"transcription":"b","result":{"transcription":"a"}}`, want: ShapeResultTranscription},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			shape, err := Classify([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, shape)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	for _, body := range []string{``, `   `, `"just a string"`, `{"transcript":"x"}`, `{broken`, `42`} {
		_, err := Classify([]byte(body))
		assert.ErrorIs(t, err, ErrUnrecognizedResponse, "body %q", body)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		shape Shape
	}{
		{name: "segments joined with spaces", body: `[{"transcription":"hello"},{"transcription":"there"}]`, want: "hello there", shape: ShapeSegments},
		{name: "text", body: `{"text":"A: hi"}`, want: "A: hi", shape: ShapeText},
		{name: "result", body: `{"result":{"transcription":"B: yo"}}`, want: "B: yo", shape: ShapeResultTranscription},
		{name: "transcription", body: `{"transcription":"C: hey","language":"en"}`, want: "C: hey", shape: ShapeTranscription},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, shape, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
			assert.Equal(t, tc.shape, shape)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, body := range []string{`{"text":"   "}`, `[]`, `{"result":{}}`, `[{"transcription":""}]`} {
		_, _, err := Decode([]byte(body))
		assert.ErrorIs(t, err, ErrEmptyTranscription, "body %q", body)
	}
}

func TestDecode_SkipsEmptyHigherPriorityField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		want  string
		shape Shape
	}{
		{name: "empty text", body: `{"text":"","transcription":"hi"}`, want: "hi", shape: ShapeTranscription},
		{name: "null text", body: `{"text":null,"result":{"transcription":"A: hey"}}`, want: "A: hey", shape: ShapeResultTranscription},
		{name: "blank text and empty result", body: `{"text":"  ","result":{},"transcription":"B: ok"}`, want: "B: ok", shape: ShapeTranscription},
		{name: "null result", body: `{"result":null,"transcription":"C: yes"}`, want: "C: yes", shape: ShapeTranscription},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, shape, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
			assert.Equal(t, tc.shape, shape)
		})
	}

	_, shape, err := Decode([]byte(`{"text":"","transcription":null}`))
	assert.ErrorIs(t, err, ErrEmptyTranscription)
	assert.Equal(t, ShapeText, shape)
}

func TestDecode_WrongFieldType(t *testing.T) {
	_, _, err := Decode([]byte(`{"text":123}`))
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)

	_, _, err = Decode([]byte(`{"result":"flat"}`))
	assert.ErrorIs(t, err, ErrUnrecognizedResponse)
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "result.transcription", ShapeResultTranscription.String())
	assert.Equal(t, "unknown", ShapeUnknown.String())
}
