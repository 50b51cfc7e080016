package reclaim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/smithy-go"
	"github.com/nathants/lambda-reclaim/lib"
)

// InvocationResult is what the function body returns. Json keys are the wire format.
type InvocationResult struct {
	FunctionName    string  `json:"-"`
	InstanceID      string  `json:"instance_id"`
	FirstSeenUnix   float64 `json:"first_seen_unix"`
	NowUnix         float64 `json:"now_unix"`
	RequestID       string  `json:"aws_request_id"`
	LogStream       string  `json:"log_stream"`
	MemoryLimitMB   int     `json:"memory_limit_mb"`
	FunctionNameEnv string  `json:"function_name"`
}

func (r *InvocationResult) FirstSeen() time.Time {
	return unixToTime(r.FirstSeenUnix)
}

func (r *InvocationResult) Now() time.Time {
	return unixToTime(r.NowUnix)
}

func unixToTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// InvocationError is a transport, provider or function failure for one function in one round.
type InvocationError struct {
	Function string
	Err      error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s invoke failed: %s", e.Function, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// MalformedResponseError is a response without an instance_id.
type MalformedResponseError struct {
	Function string
	Payload  string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s malformed response: %s. payload=%s", e.Function, e.Err, e.Payload)
	}
	return fmt.Sprintf("%s missing instance_id. payload=%s", e.Function, e.Payload)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func ParseResult(function string, payload []byte) (*InvocationResult, error) {
	result := &InvocationResult{}
	err := json.Unmarshal(payload, result)
	if err != nil {
		return nil, &MalformedResponseError{Function: function, Payload: string(payload), Err: err}
	}
	if result.InstanceID == "" {
		return nil, &MalformedResponseError{Function: function, Payload: string(payload)}
	}
	result.FunctionName = function
	return result, nil
}

var notRetryableCodes = []string{
	"ResourceNotFoundException",
	"AccessDeniedException",
	"InvalidParameterValueException",
	"InvalidRequestContentException",
	"UnrecognizedClientException",
}

// retryable reports whether another attempt within the same round could succeed.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return !lib.Contains(notRetryableCodes, apiErr.ErrorCode())
	}
	return true
}
