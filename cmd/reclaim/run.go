package lambdareclaim

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/nathants/lambda-reclaim/lib"
	"github.com/nathants/lambda-reclaim/reclaim"
)

func init() {
	lib.Commands["reclaim-run"] = reclaimRun
	lib.Args["reclaim-run"] = reclaimRunArgs{}
}

type reclaimRunArgs struct {
	Region          string  `arg:"-r,--region,env:AWS_REGION" default:"us-west-2"`
	Prefix          string  `arg:"-p,--prefix,env:RECLAIM_PREFIX" default:"my-cache-test"`
	Count           int     `arg:"-c,--count,env:RECLAIM_COUNT" default:"200"`
	Infra           string  `arg:"--infra" help:"take function names from this infra.yaml instead of prefix and count"`
	IntervalMinutes float64 `arg:"-i,--interval-minutes,env:RECLAIM_INTERVAL_MINUTES" default:"1"`
	MaxRounds       int     `arg:"--max-rounds,env:RECLAIM_MAX_ROUNDS" default:"0" help:"stop after this many rounds, 0 for unbounded"`
	Workers         int     `arg:"-w,--workers,env:RECLAIM_WORKERS" default:"64"`
	Retries         uint    `arg:"--retries" default:"0" help:"extra attempts within a round for failed invokes"`
	InvokeTimeout   int     `arg:"--invoke-timeout" default:"0" help:"seconds per invoke attempt, 0 for the sdk default"`
	LogDir          string  `arg:"--log-dir" default:"."`
	MetricNamespace string  `arg:"--metric-namespace" help:"publish per round counts to this cloudwatch namespace"`
	Upload          string  `arg:"-u,--upload" help:"s3://bucket/key to upload the json report to"`
	credsArgs
}

func (reclaimRunArgs) Description() string {
	return "\ninvoke every lambda each interval until all of them were reclaimed at least once\n"
}

func reclaimRun() {
	var args reclaimRunArgs
	arg.MustParse(&args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if args.IntervalMinutes < 0 {
		lib.Logger.Fatal("error: interval cannot be negative")
	}
	functions := reclaim.FunctionNames(args.Prefix, args.Count)
	if args.Infra != "" {
		infraSet, err := lib.InfraParse(args.Infra)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		functions = lib.InfraLambdaNames(infraSet)
	}
	if len(functions) == 0 {
		lib.Logger.Fatal("error: no functions to invoke")
	}
	started := time.Now()
	logPath := filepath.Join(args.LogDir, fmt.Sprintf("lambda_reclaim_%d.log", started.Unix()))
	logger, err := lib.NewFileLogger(logPath)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	defer func() { _ = logger.Close() }()
	logger.Infof("Logging to file: %s", logPath)
	if args.explicit() {
		logger.Infof("region=%s functions=%d credentials=explicit", args.Region, len(functions))
	} else {
		account, err := lib.StsAccount(ctx)
		if err != nil {
			logger.Warnf("could not resolve account: %s", err)
		} else {
			logger.Infof("account=%s region=%s functions=%d", account, args.Region, len(functions))
		}
	}
	client, err := lambdaClient(args.Region, args.credsArgs)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	config := reclaim.Config{
		Region:        args.Region,
		Prefix:        args.Prefix,
		Functions:     functions,
		Interval:      time.Duration(args.IntervalMinutes * float64(time.Minute)),
		MaxRounds:     args.MaxRounds,
		Workers:       args.Workers,
		Retries:       args.Retries,
		InvokeTimeout: time.Duration(args.InvokeTimeout) * time.Second,
	}
	driver := reclaim.NewDriver(config, &reclaim.LambdaInvoker{Client: client}, logger)
	if args.MetricNamespace != "" {
		cw, err := lib.CloudwatchClientRegion(args.Region)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		driver.Metrics = &reclaim.CloudwatchMetrics{Client: cw, Namespace: args.MetricNamespace, Prefix: args.Prefix}
	}
	summary, err := driver.Run(ctx)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	report := reclaim.NewReport(config, driver.State, summary, started, time.Now())
	data, err := report.JSON()
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	reportPath := strings.TrimSuffix(logPath, ".log") + ".json"
	err = os.WriteFile(reportPath, data, 0644)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	logger.Infof("report: %s", reportPath)
	if args.Upload != "" {
		s3Client, err := lib.S3ClientRegion(args.Region)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		err = lib.S3PutBytes(context.Background(), s3Client, args.Upload, data)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		logger.Infof("uploaded: %s", args.Upload)
	}
}
