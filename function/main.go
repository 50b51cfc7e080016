package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gofrs/uuid"
	"github.com/nathants/lambda-reclaim/reclaim"
)

// set once per execution environment, a new value means the environment was recreated
var (
	instanceID = uuid.Must(uuid.NewV4()).String()
	firstSeen  = time.Now()
)

func handleRequest(ctx context.Context) (*reclaim.InvocationResult, error) {
	result := &reclaim.InvocationResult{
		InstanceID:      instanceID,
		FirstSeenUnix:   reclaim.UnixSeconds(firstSeen),
		NowUnix:         reclaim.UnixSeconds(time.Now()),
		LogStream:       lambdacontext.LogStreamName,
		MemoryLimitMB:   lambdacontext.MemoryLimitInMB,
		FunctionNameEnv: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
	}
	lc, ok := lambdacontext.FromContext(ctx)
	if ok {
		result.RequestID = lc.AwsRequestID
	}
	return result, nil
}

func main() {
	lambda.Start(handleRequest)
}
