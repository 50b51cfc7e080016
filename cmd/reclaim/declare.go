package lambdareclaim

import (
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/nathants/lambda-reclaim/lib"
	"github.com/nathants/lambda-reclaim/reclaim"
)

func init() {
	lib.Commands["reclaim-declare"] = reclaimDeclare
	lib.Args["reclaim-declare"] = reclaimDeclareArgs{}
}

type reclaimDeclareArgs struct {
	Output     string `arg:"-o,--output" default:"infra.yaml" help:"path of the infra.yaml to write, - for stdout"`
	Name       string `arg:"-n,--name" default:"lambda-reclaim" help:"infraset name"`
	Prefix     string `arg:"-p,--prefix,env:RECLAIM_PREFIX" default:"my-cache-test"`
	Count      int    `arg:"-c,--count,env:RECLAIM_COUNT" default:"200"`
	Memory     int    `arg:"-m,--memory" default:"1024" help:"megabytes"`
	Timeout    int    `arg:"-t,--timeout" default:"3" help:"seconds"`
	Entrypoint string `arg:"-e,--entrypoint" default:"function/main.go" help:"relative to the infra.yaml"`
}

func (reclaimDeclareArgs) Description() string {
	return "\ndeclare N identical lambdas as a libaws infra.yaml, deploy it with: libaws infra-ensure infra.yaml\n"
}

func reclaimDeclare() {
	var args reclaimDeclareArgs
	arg.MustParse(&args)
	specs, err := reclaim.Declare(args.Prefix, args.Count, reclaim.FunctionSpec{
		MemoryMB:       args.Memory,
		TimeoutSeconds: args.Timeout,
		Entrypoint:     args.Entrypoint,
	})
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	infraSet, err := reclaim.InfraSet(args.Name, specs)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	data, err := lib.InfraMarshal(infraSet)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	if args.Output == "-" {
		fmt.Print(string(data))
		return
	}
	err = os.WriteFile(args.Output, data, 0644)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	parsed, err := lib.InfraParse(args.Output)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	if len(parsed.Lambda) != len(specs) {
		lib.Logger.Fatalf("error: declared %d lambdas, parsed %d\n", len(specs), len(parsed.Lambda))
	}
	lib.Logger.Println("declared:", len(specs), "lambdas", reclaim.FunctionName(args.Prefix, 0), "..", reclaim.FunctionName(args.Prefix, args.Count-1), "in", args.Output)
}
