package lib

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var s3Client *s3.Client
var s3ClientLock sync.Mutex
var s3ClientRegional = make(map[string]*s3.Client)

func S3Client() *s3.Client {
	s3ClientLock.Lock()
	defer s3ClientLock.Unlock()
	if s3Client == nil {
		s3Client = s3.NewFromConfig(*Session())
	}
	return s3Client
}

func S3ClientRegion(region string) (*s3.Client, error) {
	if region == "" {
		return S3Client(), nil
	}
	cfg, err := SessionRegion(region)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	s3ClientLock.Lock()
	defer s3ClientLock.Unlock()
	client, ok := s3ClientRegional[region]
	if !ok {
		client = s3.NewFromConfig(*cfg)
		s3ClientRegional[region] = client
	}
	return client, nil
}

// S3Url splits s3://bucket/key into bucket and key.
func S3Url(url string) (bucket, key string, err error) {
	if !strings.HasPrefix(url, "s3://") {
		err := fmt.Errorf("s3 url should start with s3://, got: %s", url)
		return "", "", err
	}
	bucket, key, err = SplitOnce(strings.TrimPrefix(url, "s3://"), "/")
	if err != nil || bucket == "" || key == "" {
		err := fmt.Errorf("s3 url should look like s3://bucket/key, got: %s", url)
		return "", "", err
	}
	return bucket, key, nil
}

func S3PutBytes(ctx context.Context, client *s3.Client, url string, data []byte) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "S3PutBytes"}
		defer d.Log()
	}
	bucket, key, err := S3Url(url)
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	err = Retry(ctx, func() error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		Logger.Println("error:", err)
		return err
	}
	return nil
}
