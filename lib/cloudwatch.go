package lib

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var cloudwatchClient *cloudwatch.Client
var cloudwatchClientLock sync.Mutex
var cloudwatchClientRegional = make(map[string]*cloudwatch.Client)

func CloudwatchClient() *cloudwatch.Client {
	cloudwatchClientLock.Lock()
	defer cloudwatchClientLock.Unlock()
	if cloudwatchClient == nil {
		cloudwatchClient = cloudwatch.NewFromConfig(*Session())
	}
	return cloudwatchClient
}

func CloudwatchClientRegion(region string) (*cloudwatch.Client, error) {
	if region == "" {
		return CloudwatchClient(), nil
	}
	cfg, err := SessionRegion(region)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	cloudwatchClientLock.Lock()
	defer cloudwatchClientLock.Unlock()
	client, ok := cloudwatchClientRegional[region]
	if !ok {
		client = cloudwatch.NewFromConfig(*cfg)
		cloudwatchClientRegional[region] = client
	}
	return client, nil
}

// CloudwatchPutCounts publishes each count as a Count datum sharing one dimension.
func CloudwatchPutCounts(ctx context.Context, client *cloudwatch.Client, namespace, dimension, value string, counts map[string]float64) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "CloudwatchPutCounts"}
		defer d.Log()
	}
	now := time.Now()
	var data []cwtypes.MetricDatum
	for name, count := range counts {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(count),
			Unit:       cwtypes.StandardUnitCount,
			Timestamp:  aws.Time(now),
			Dimensions: []cwtypes.Dimension{{
				Name:  aws.String(dimension),
				Value: aws.String(value),
			}},
		})
	}
	_, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}
