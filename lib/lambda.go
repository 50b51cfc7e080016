package lib

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	lambdaAttrConcurrency = "concurrency"
	lambdaAttrMemory      = "memory"
	lambdaAttrTimeout     = "timeout"
	lambdaAttrLogsTTLDays = "logs-ttl-days"

	LambdaAttrMemoryDefault  = 128
	LambdaAttrTimeoutDefault = 300

	LambdaRuntimeGo     = "provided.al2023"
	LambdaRuntimePython = "python3.11"
)

var lambdaClient *lambda.Client
var lambdaClientLock sync.Mutex
var lambdaClientRegional = make(map[string]*lambda.Client)

func LambdaClientExplicit(accessKeyID, accessKeySecret, region string) *lambda.Client {
	return lambda.NewFromConfig(*SessionExplicit(accessKeyID, accessKeySecret, region))
}

func LambdaClient() *lambda.Client {
	lambdaClientLock.Lock()
	defer lambdaClientLock.Unlock()
	if lambdaClient == nil {
		lambdaClient = lambda.NewFromConfig(*Session())
	}
	return lambdaClient
}

func LambdaClientRegion(region string) (*lambda.Client, error) {
	if region == "" {
		return LambdaClient(), nil
	}
	cfg, err := SessionRegion(region)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	lambdaClientLock.Lock()
	defer lambdaClientLock.Unlock()
	client, ok := lambdaClientRegional[region]
	if !ok {
		client = lambda.NewFromConfig(*cfg)
		lambdaClientRegional[region] = client
	}
	return client, nil
}

// LambdaFunctionError is returned when the invocation reached the function
// but the function itself reported an error.
type LambdaFunctionError struct {
	Name    string
	Type    string
	Payload string
}

func (e *LambdaFunctionError) Error() string {
	return fmt.Sprintf("lambda %s function error %s: %s", e.Name, e.Type, e.Payload)
}

// LambdaInvokeSync invokes name with RequestResponse and returns the response payload.
func LambdaInvokeSync(ctx context.Context, client *lambda.Client, name string, payload []byte) ([]byte, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "LambdaInvokeSync"}
		defer d.Log()
	}
	out, err := client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(name),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, err
	}
	if out.FunctionError != nil {
		return nil, &LambdaFunctionError{
			Name:    name,
			Type:    *out.FunctionError,
			Payload: string(out.Payload),
		}
	}
	return out.Payload, nil
}

func LambdaGetFunctionConfiguration(ctx context.Context, client *lambda.Client, name string) (*lambda.GetFunctionConfigurationOutput, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "LambdaGetFunctionConfiguration"}
		defer d.Log()
	}
	var out *lambda.GetFunctionConfigurationOutput
	err := Retry(ctx, func() error {
		var err error
		out, err = client.GetFunctionConfiguration(ctx, &lambda.GetFunctionConfigurationInput{
			FunctionName: aws.String(name),
		})
		if LambdaIsNotFound(err) {
			return retry.Unrecoverable(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func LambdaIsNotFound(err error) bool {
	var notFound *lambdatypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}

func LambdaListFunctions(ctx context.Context, client *lambda.Client, prefix string) ([]lambdatypes.FunctionConfiguration, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "LambdaListFunctions"}
		defer d.Log()
	}
	var functions []lambdatypes.FunctionConfiguration
	paginator := lambda.NewListFunctionsPaginator(client, &lambda.ListFunctionsInput{})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		for _, fn := range out.Functions {
			if prefix == "" || strings.HasPrefix(aws.ToString(fn.FunctionName), prefix) {
				functions = append(functions, fn)
			}
		}
	}
	return functions, nil
}
