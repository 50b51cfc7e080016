package lib

import (
	"context"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const defaultRegion = "us-west-2"

var sess *aws.Config
var sessLock sync.Mutex
var sessRegional = make(map[string]*aws.Config)

func Session() *aws.Config {
	sessLock.Lock()
	defer sessLock.Unlock()
	if sess == nil {
		cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRetryMaxAttempts(5))
		if err != nil {
			panic(err)
		}
		if cfg.Region == "" {
			cfg.Region = defaultRegion
		}
		sess = &cfg
	}
	return sess
}

func SessionRegion(region string) (*aws.Config, error) {
	sessLock.Lock()
	defer sessLock.Unlock()
	cfg, ok := sessRegional[region]
	if !ok {
		loaded, err := config.LoadDefaultConfig(
			context.Background(),
			config.WithRegion(region),
			config.WithRetryMaxAttempts(5),
		)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		cfg = &loaded
		sessRegional[region] = cfg
	}
	return cfg, nil
}

func SessionExplicit(accessKeyID, accessKeySecret, region string) *aws.Config {
	cfg, err := config.LoadDefaultConfig(
		context.Background(),
		config.WithRegion(region),
		config.WithRetryMaxAttempts(5),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, os.Getenv("AWS_SESSION_TOKEN"))),
	)
	if err != nil {
		panic(err)
	}
	return &cfg
}
