package lambdareclaim

import (
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/nathants/lambda-reclaim/lib"
)

// credsArgs lets a run target an account other than the default profile's.
type credsArgs struct {
	AccessKeyID     string `arg:"--access-key-id,env:RECLAIM_AWS_ACCESS_KEY_ID"`
	AccessKeySecret string `arg:"--access-key-secret,env:RECLAIM_AWS_SECRET_ACCESS_KEY"`
}

func (c credsArgs) explicit() bool {
	return c.AccessKeyID != "" && c.AccessKeySecret != ""
}

func lambdaClient(region string, creds credsArgs) (*lambda.Client, error) {
	if creds.explicit() {
		return lib.LambdaClientExplicit(creds.AccessKeyID, creds.AccessKeySecret, region), nil
	}
	return lib.LambdaClientRegion(region)
}
