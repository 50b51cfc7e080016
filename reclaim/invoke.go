package reclaim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/nathants/lambda-reclaim/lib"
	"golang.org/x/sync/semaphore"
)

const DefaultWorkers = 64

var emptyPayload = []byte("{}")

// Invoker performs one synchronous invocation with an empty payload.
type Invoker interface {
	Invoke(ctx context.Context, function string) ([]byte, error)
}

type LambdaInvoker struct {
	Client *lambda.Client
}

func (i *LambdaInvoker) Invoke(ctx context.Context, function string) ([]byte, error) {
	return lib.LambdaInvokeSync(ctx, i.Client, function, emptyPayload)
}

// Outcome holds either a result or an error, never both.
type Outcome struct {
	Function string
	Result   *InvocationResult
	Err      error
	Attempts int
}

type InvokeOptions struct {
	Workers int
	// Timeout bounds each attempt. Zero leaves it to the provider.
	Timeout time.Duration
	// Retries is the number of extra attempts for retryable invocation errors.
	Retries    uint
	RetryDelay time.Duration
}

type indexedOutcome struct {
	index   int
	outcome Outcome
}

// InvokeAll invokes every function with at most opts.Workers in flight and
// returns one outcome per function, in the order of functions.
func InvokeAll(ctx context.Context, invoker Invoker, functions []string, opts InvokeOptions) []Outcome {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 250 * time.Millisecond
	}
	resultChan := make(chan indexedOutcome, len(functions))
	concurrency := semaphore.NewWeighted(int64(opts.Workers))
	for i, function := range functions {
		go func(i int, function string) {
			defer func() {
				if r := recover(); r != nil {
					resultChan <- indexedOutcome{i, Outcome{
						Function: function,
						Err:      &InvocationError{Function: function, Err: fmt.Errorf("panic: %v", r)},
					}}
				}
			}()
			err := concurrency.Acquire(ctx, 1)
			if err != nil {
				resultChan <- indexedOutcome{i, Outcome{
					Function: function,
					Err:      &InvocationError{Function: function, Err: err},
				}}
				return
			}
			defer concurrency.Release(1)
			resultChan <- indexedOutcome{i, invokeOne(ctx, invoker, function, opts)}
		}(i, function)
	}
	outcomes := make([]Outcome, len(functions))
	for range functions {
		r := <-resultChan
		outcomes[r.index] = r.outcome
	}
	return outcomes
}

func invokeOne(ctx context.Context, invoker Invoker, function string, opts InvokeOptions) Outcome {
	outcome := Outcome{Function: function}
	err := retry.Do(
		func() error {
			outcome.Attempts++
			payload, err := invokeAttempt(ctx, invoker, function, opts.Timeout)
			if err != nil {
				return &InvocationError{Function: function, Err: err}
			}
			result, err := ParseResult(function, payload)
			if err != nil {
				return err
			}
			outcome.Result = result
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(opts.Retries+1),
		retry.Delay(opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	if err != nil {
		var invocationErr *InvocationError
		var malformedErr *MalformedResponseError
		if !errors.As(err, &invocationErr) && !errors.As(err, &malformedErr) {
			err = &InvocationError{Function: function, Err: err}
		}
		outcome.Result = nil
		outcome.Err = err
	}
	return outcome
}

func invokeAttempt(ctx context.Context, invoker Invoker, function string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return invoker.Invoke(ctx, function)
}
