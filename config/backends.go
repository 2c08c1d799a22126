package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-logr/logr"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/lzap/qctask"
	"github.com/lzap/qctask/log/awsadapter"
	"github.com/lzap/qctask/mem"
	"github.com/lzap/qctask/oteladapters"
	"github.com/lzap/qctask/postgres"
	"github.com/lzap/qctask/redis"
	"github.com/lzap/qctask/sqs"
)

func (r Redis) options() redis.Options {
	return redis.Options{
		Address:  r.Address,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
	}
}

// NewTransport creates the configured message transport.
func (c *Config) NewTransport(ctx context.Context, logger logr.Logger) (qctask.Transport, error) {
	logger = logger.WithName("transport")
	switch c.Transport.Type {
	case TypeMem:
		client, err := mem.NewClient(ctx, logger, c.Transport.Buffer)
		if err != nil {
			return nil, err
		}
		return client, nil
	case TypeRedis:
		client, err := redis.NewClient(ctx, logger, c.Transport.Redis.options(), c.Transport.Redis.Queue)
		if err != nil {
			return nil, err
		}
		return client, nil
	case TypeSQS:
		// use AWS_PROFILE env variable to use a different AWS config profile
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithLogger(awsadapter.NewLogger(logger)))
		if err != nil {
			return nil, qctask.ErrCreateClient.Context(err)
		}
		client, err := sqs.NewClient(ctx, cfg, logger, c.Transport.SQS.Queue, sqs.Options{
			Workers:              c.Transport.SQS.Workers,
			VisibilityTimeoutSec: c.Transport.SQS.VisibilityTimeoutSeconds,
			MaxExtensions:        c.Transport.SQS.MaxExtensions,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("unknown transport type %q", c.Transport.Type))
}

// NewRepository creates the configured monitor object repository. The postgres schema is
// created when missing.
func (c *Config) NewRepository(ctx context.Context, logger logr.Logger) (qctask.Repository, error) {
	logger = logger.WithName("repository")
	switch c.Repository.Type {
	case TypeMem:
		return mem.NewRepository(logger), nil
	case TypeRedis:
		repo, err := redis.NewRepository(ctx, logger, c.Repository.Redis.options(), c.Repository.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case TypePostgres:
		pool, err := postgres.Connect(ctx, c.Repository.Postgres.URL)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRepository(logger, pool, c.Repository.Postgres.Table)
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}
	return nil, qctask.ErrInvalidConfig.Context(fmt.Errorf("unknown repository type %q", c.Repository.Type))
}

// NewMeterProvider creates the OpenTelemetry meter provider exporting runner metrics.
func (c *Config) NewMeterProvider(ctx context.Context, opts ...sdkmetric.Option) (*sdkmetric.MeterProvider, error) {
	return oteladapters.NewMeterProvider(ctx, oteladapters.ProviderConfig{
		Endpoint:    c.Metrics.Endpoint,
		Insecure:    c.Metrics.Insecure,
		ServiceName: c.Metrics.ServiceName,
		Interval:    time.Duration(c.Metrics.IntervalSeconds) * time.Second,
	}, opts...)
}
