package reclaim

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/nathants/lambda-reclaim/lib"
	"github.com/r3labs/diff/v2"
	"golang.org/x/sync/errgroup"
)

// ConfigFetcher returns the deployed configuration of a function, or nil when it does not exist.
type ConfigFetcher interface {
	Fetch(ctx context.Context, function string) (*FunctionSpec, error)
}

type LambdaConfigFetcher struct {
	Client *lambda.Client
}

func (f *LambdaConfigFetcher) Fetch(ctx context.Context, function string) (*FunctionSpec, error) {
	out, err := lib.LambdaGetFunctionConfiguration(ctx, f.Client, function)
	if err != nil {
		if lib.LambdaIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &FunctionSpec{
		Name:           aws.ToString(out.FunctionName),
		Runtime:        string(out.Runtime),
		MemoryMB:       int(aws.ToInt32(out.MemorySize)),
		TimeoutSeconds: int(aws.ToInt32(out.Timeout)),
	}, nil
}

func FetchDeployed(ctx context.Context, fetcher ConfigFetcher, functions []string, workers int) (map[string]*FunctionSpec, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	var lock sync.Mutex
	deployed := map[string]*FunctionSpec{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, function := range functions {
		function := function
		g.Go(func() error {
			spec, err := fetcher.Fetch(gctx, function)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", function, err)
			}
			lock.Lock()
			deployed[function] = spec
			lock.Unlock()
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		lib.Logger.Println("error:", err)
		return nil, err
	}
	return deployed, nil
}

type VerifyResult struct {
	Function string
	Missing  bool
	Changes  diff.Changelog
}

func (r VerifyResult) OK() bool {
	return !r.Missing && len(r.Changes) == 0
}

func (r VerifyResult) String() string {
	if r.Missing {
		return fmt.Sprintf("%s: missing", r.Function)
	}
	if len(r.Changes) == 0 {
		return fmt.Sprintf("%s: ok", r.Function)
	}
	var parts []string
	for _, change := range r.Changes {
		parts = append(parts, fmt.Sprintf("%s declared=%v deployed=%v", strings.Join(change.Path, "."), change.From, change.To))
	}
	return fmt.Sprintf("%s: %s", r.Function, strings.Join(parts, " "))
}

// Verify compares declared specs against deployed ones, in declared order.
// Container image functions report no runtime and are not compared on it.
func Verify(declared []FunctionSpec, deployed map[string]*FunctionSpec) ([]VerifyResult, error) {
	var results []VerifyResult
	for _, want := range declared {
		got := deployed[want.Name]
		if got == nil {
			results = append(results, VerifyResult{Function: want.Name, Missing: true})
			continue
		}
		have := *got
		if want.Runtime == "" {
			have.Runtime = ""
		}
		changes, err := diff.Diff(want, have)
		if err != nil {
			return nil, err
		}
		results = append(results, VerifyResult{Function: want.Name, Changes: changes})
	}
	return results, nil
}
