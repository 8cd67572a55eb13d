package transcribe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qs3c/coach_go_server/internal/transcript"
)

var (
	ErrUnrecognizedResponse = errors.New("unrecognized transcription response")
	ErrEmptyTranscription   = errors.New("empty transcription")
)

// Shape 已知的转写响应形态
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeSegments
	ShapeText
	ShapeResultTranscription
	ShapeTranscription
)

func (s Shape) String() string {
	switch s {
	case ShapeSegments:
		return "segments"
	case ShapeText:
		return "text"
	case ShapeResultTranscription:
		return "result.transcription"
	case ShapeTranscription:
		return "transcription"
	default:
		return "unknown"
	}
}

// objectShapes 对象响应的字段优先级
var objectShapes = []struct {
	key   string
	shape Shape
}{
	{key: "text", shape: ShapeText},
	{key: "result", shape: ShapeResultTranscription},
	{key: "transcription", shape: ShapeTranscription},
}

// Classify 判定响应形态，对象字段优先级为 text > result > transcription
func Classify(body []byte) (Shape, error) {
	shapes, err := candidates(body)
	if err != nil {
		return ShapeUnknown, err
	}
	return shapes[0], nil
}

// candidates 按优先级列出响应中出现的全部形态
func candidates(body []byte) ([]Shape, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, ErrUnrecognizedResponse
	}

	switch trimmed[0] {
	case '[':
		return []Shape{ShapeSegments}, nil
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnrecognizedResponse, err)
		}
		var shapes []Shape
		for _, c := range objectShapes {
			if _, ok := fields[c.key]; ok {
				shapes = append(shapes, c.shape)
			}
		}
		if len(shapes) > 0 {
			return shapes, nil
		}
	}
	return nil, ErrUnrecognizedResponse
}

// Decode 按形态解析出纯文本。高优先级字段为空或 null 时继续尝试下一个形态，
// 全部为空返回 ErrEmptyTranscription
func Decode(body []byte) (string, Shape, error) {
	shapes, err := candidates(body)
	if err != nil {
		return "", ShapeUnknown, err
	}

	for _, shape := range shapes {
		text, err := decodeShape(shape, body)
		if err != nil {
			return "", shape, fmt.Errorf("%w: %s: %v", ErrUnrecognizedResponse, shape, err)
		}
		if strings.TrimSpace(text) != "" {
			return text, shape, nil
		}
	}
	return "", shapes[0], ErrEmptyTranscription
}

func decodeShape(shape Shape, body []byte) (string, error) {
	switch shape {
	case ShapeSegments:
		return decodeSegments(body)
	case ShapeText:
		return decodeText(body)
	case ShapeResultTranscription:
		return decodeResultTranscription(body)
	case ShapeTranscription:
		return decodeTranscription(body)
	default:
		return "", ErrUnrecognizedResponse
	}
}

func decodeSegments(body []byte) (string, error) {
	var parts []struct {
		Transcription string `json:"transcription"`
	}
	if err := json.Unmarshal(body, &parts); err != nil {
		return "", err
	}
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Transcription
	}
	return transcript.JoinTranscriptions(texts), nil
}

func decodeText(body []byte) (string, error) {
	var v struct {
		Text string `json:"text"`
	}
	err := json.Unmarshal(body, &v)
	return v.Text, err
}

func decodeResultTranscription(body []byte) (string, error) {
	var v struct {
		Result struct {
			Transcription string `json:"transcription"`
		} `json:"result"`
	}
	err := json.Unmarshal(body, &v)
	return v.Result.Transcription, err
}

func decodeTranscription(body []byte) (string, error) {
	var v struct {
		Transcription string `json:"transcription"`
	}
	err := json.Unmarshal(body, &v)
	return v.Transcription, err
}
