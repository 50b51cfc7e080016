package lambdareclaim

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/nathants/lambda-reclaim/lib"
)

func init() {
	lib.Commands["reclaim-ls"] = reclaimLs
	lib.Args["reclaim-ls"] = reclaimLsArgs{}
}

type reclaimLsArgs struct {
	Region string `arg:"-r,--region,env:AWS_REGION" default:"us-west-2"`
	Prefix string `arg:"-p,--prefix,env:RECLAIM_PREFIX" default:"my-cache-test"`
	credsArgs
}

func (reclaimLsArgs) Description() string {
	return "\nlist deployed lambdas with the prefix\n"
}

func reclaimLs() {
	var args reclaimLsArgs
	arg.MustParse(&args)
	ctx := context.Background()
	client, err := lambdaClient(args.Region, args.credsArgs)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	functions, err := lib.LambdaListFunctions(ctx, client, args.Prefix+"-")
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	for _, fn := range functions {
		fmt.Println(
			aws.ToString(fn.FunctionName),
			fmt.Sprintf("memory=%d", aws.ToInt32(fn.MemorySize)),
			fmt.Sprintf("timeout=%d", aws.ToInt32(fn.Timeout)),
			fmt.Sprintf("runtime=%s", fn.Runtime),
		)
	}
}
