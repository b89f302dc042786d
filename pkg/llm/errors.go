package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind 將遠端模型錯誤分類，決定重試與換 key 策略
type ErrorKind int

const (
	// KindTransient 暫時性錯誤 (5xx, network, timeout)：退避重試，不換 key
	KindTransient ErrorKind = iota
	// KindRateLimited 429 或配額用盡：計入憑證失敗並輪換
	KindRateLimited
	// KindCredentialInvalid 401/403 或 key 無效：輪換但不計入 5-in-5 視窗
	KindCredentialInvalid
	// KindParse 模型回覆格式不符：觸發一次 reformat 重試
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindCredentialInvalid:
		return "credential_invalid"
	case KindParse:
		return "parse_error"
	default:
		return "transient"
	}
}

// APIError carries the HTTP status a provider surfaced, when it had one.
// Providers wrap SDK errors into this so Classify can use the code instead
// of guessing from text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}

// ParseError marks a completion whose text could not be projected into a
// decision. Carries the raw text for the reformat retry.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm response parse failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Classify maps an error from a provider call to its taxonomy kind.
// Status codes win when present; otherwise the message text is sniffed.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindTransient
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return KindRateLimited
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return KindCredentialInvalid
		case apiErr.StatusCode >= 500:
			return KindTransient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota exceeded"), strings.Contains(msg, "429"):
		return KindRateLimited
	case strings.Contains(msg, "invalid key"), strings.Contains(msg, "api key"), strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "unauthorized"):
		return KindCredentialInvalid
	}

	return KindTransient
}
