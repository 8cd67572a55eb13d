package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Kind 分析失败的类别
type Kind string

const (
	KindMissingAPIKey Kind = "missing_api_key"
	KindAuth          Kind = "auth"
	KindUpstream      Kind = "upstream"
	KindNetwork       Kind = "network"
	KindEmpty         Kind = "empty"
)

// 分析失败时对用户展示的结果
const (
	FailureModel = "error"
	ApologyText  = "Sorry, we couldn't analyze this conversation right now. Please check your API key in settings and try again."
)

// AnalysisError 分析接口调用失败
type AnalysisError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *AnalysisError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis failed (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("analysis failed (%s): %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// KindOf 提取失败类别，非 AnalysisError 返回空
func KindOf(err error) Kind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func classify(err error) *AnalysisError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &AnalysisError{Kind: kindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &AnalysisError{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	// 超时、连接失败等
	return &AnalysisError{Kind: KindNetwork, Err: err}
}

func kindForStatus(status int) Kind {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return KindAuth
	}
	return KindUpstream
}
