package reclaim

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/nathants/lambda-reclaim/lib"
)

const metricDimension = "Prefix"

type CloudwatchMetrics struct {
	Client    *cloudwatch.Client
	Namespace string
	Prefix    string
}

func (m *CloudwatchMetrics) PutRound(ctx context.Context, stats RoundStats) error {
	return lib.CloudwatchPutCounts(ctx, m.Client, m.Namespace, metricDimension, m.Prefix, RoundCounts(stats))
}

func RoundCounts(stats RoundStats) map[string]float64 {
	return map[string]float64{
		"Reclaimed":        float64(stats.Reclaimed),
		"ChangedThisRound": float64(stats.Changed),
		"Errors":           float64(stats.Errors),
	}
}
