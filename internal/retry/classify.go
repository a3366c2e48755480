// Package retry classifies upstream errors as retryable or terminal and
// wraps calls with backoff and circuit-breaking so a flaky cloud API never
// turns into an unbounded hang or a thundering-herd retry storm.
package retry

import (
	"errors"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
)

// Class is the outcome of classifying an error for retry purposes.
type Class int

const (
	// Retryable means the call may succeed if attempted again.
	Retryable Class = iota
	// Terminal means retrying cannot help (bad request, auth failure, etc).
	Terminal
)

// throttlingCodes lists the AWS API error codes that mean "back off and
// try again", distinct from client-error codes that won't change on retry.
var throttlingCodes = map[string]bool{
	"Throttling":                  true,
	"ThrottlingException":         true,
	"TooManyRequestsException":    true,
	"RequestLimitExceeded":        true,
	"ProvisionedThroughputExceededException": true,
	"SlowDown":                    true,
	"RequestThrottled":            true,
	"ServiceUnavailable":          true,
	"InternalError":               true,
}

// Classify inspects err and reports whether the call that produced it is
// worth retrying.
func Classify(err error) Class {
	if err == nil {
		return Terminal
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if throttlingCodes[apiErr.ErrorCode()] {
			return Retryable
		}
		return Terminal
	}

	var httpErr interface{ StatusCode() int }
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode()
		if code == http.StatusTooManyRequests || code >= 500 {
			return Retryable
		}
		return Terminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Retryable
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Retryable // connection refused/reset, DNS failures, etc.
	}

	return Terminal
}
