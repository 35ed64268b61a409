// Package llm adapts hosted language models to ports.Completer.
package llm

import (
	"errors"
	"strings"
)

// ErrRateLimited marks a provider refusal caused by throttling or exhausted quota.
var ErrRateLimited = errors.New("llm: rate limited")

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

var throttleMarkers = []string{
	"status 429",
	"error 429",
	"code 429",
	"429 too many requests",
	"resource_exhausted",
	"quota",
	"rate limit",
	"too many requests",
}

// IsRateLimited reports whether err means "slow down and try again later".
// Providers that do not wrap ErrRateLimited are recognised by their message.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
