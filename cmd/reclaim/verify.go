package lambdareclaim

import (
	"context"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/nathants/lambda-reclaim/lib"
	"github.com/nathants/lambda-reclaim/reclaim"
)

func init() {
	lib.Commands["reclaim-verify"] = reclaimVerify
	lib.Args["reclaim-verify"] = reclaimVerifyArgs{}
}

type reclaimVerifyArgs struct {
	Infra   string `arg:"positional" default:"infra.yaml"`
	Region  string `arg:"-r,--region,env:AWS_REGION" default:"us-west-2"`
	Workers int    `arg:"-w,--workers" default:"16"`
}

func (reclaimVerifyArgs) Description() string {
	return "\ncompare the lambdas declared in infra.yaml with what is deployed\n"
}

func reclaimVerify() {
	var args reclaimVerifyArgs
	arg.MustParse(&args)
	ctx := context.Background()
	infraSet, err := lib.InfraParse(args.Infra)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	specs, err := reclaim.SpecsFromInfra(infraSet)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	client, err := lib.LambdaClientRegion(args.Region)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	deployed, err := reclaim.FetchDeployed(ctx, &reclaim.LambdaConfigFetcher{Client: client}, reclaim.SpecNames(specs), args.Workers)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	results, err := reclaim.Verify(specs, deployed)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fail := false
	for _, result := range results {
		fmt.Println(result)
		if !result.OK() {
			fail = true
		}
	}
	if fail {
		os.Exit(1)
	}
}
