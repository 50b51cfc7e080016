package lib

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

type ArgsStruct interface {
	Description() string
}

var Commands = make(map[string]func())

var Args = make(map[string]ArgsStruct)

var doDebug = strings.ToLower(os.Getenv("DEBUG")+" ")[:1] == "y"

type Debug struct {
	start time.Time
	name  string
}

func (d *Debug) Log() {
	Logger.Printf("debug: %s took %s\n", d.name, time.Since(d.start))
}

func Retry(ctx context.Context, fn func() error) error {
	return RetryAttempts(ctx, 6, fn)
}

func RetryAttempts(ctx context.Context, attempts uint, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err != nil {
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Attempts(attempts),
		retry.Delay(150*time.Millisecond),
		retry.MaxDelay(3*time.Second),
	)
}

func Contains(parts []string, part string) bool {
	for _, p := range parts {
		if p == part {
			return true
		}
	}
	return false
}

func SplitOnce(s string, sep string) (head, tail string, err error) {
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		err := fmt.Errorf("%s does not contain %s", s, sep)
		return "", "", err
	}
	return parts[0], parts[1], nil
}

func IsDigit(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
