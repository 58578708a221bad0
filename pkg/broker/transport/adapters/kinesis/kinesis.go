// Package kinesis is the partitioned stream/log-store transport.Adapter,
// backed by github.com/aws/aws-sdk-go-v2/service/kinesis: PutRecord for
// publish, and a shard-iterator poll loop for subscribe since Kinesis has
// no native consumer-group push API.
package kinesis

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/brokercore/brokercore/pkg/broker/transport"
	"github.com/brokercore/brokercore/pkg/envelope"
	"github.com/brokercore/brokercore/pkg/errors"
)

// Config configures the Kinesis adapter.
type Config struct {
	PollInterval time.Duration `env:"KINESIS_POLL_INTERVAL" env-default:"2s"`
}

type subscription struct {
	streamName string
	handler    func(transport.Delivery)
}

// Adapter implements transport.Adapter over the Kinesis data-stream API.
type Adapter struct {
	cfg    Config
	client *kinesis.Client

	mu     sync.Mutex
	subs   []*subscription
	cancel context.CancelFunc
}

// New loads the default AWS config and builds a Kinesis client.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Permanent("failed to load aws config", err)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Adapter{cfg: cfg, client: kinesis.NewFromConfig(awsCfg)}, nil
}

func (a *Adapter) PublishRaw(ctx context.Context, env *envelope.Envelope, routingKey string, opts transport.PublishOptions) error {
	partitionKey := env.MessageID
	if partitionKey == "" {
		partitionKey = env.RoutingKey
	}
	_, err := a.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(routingKey),
		PartitionKey: aws.String(partitionKey),
		Data:         env.Payload,
	})
	if err != nil {
		return errors.Transient("kinesis put record failed", err)
	}
	return nil
}

func (a *Adapter) SubscribeRaw(ctx context.Context, typeKey string, routingKey string, opts transport.SubscribeOptions, handler func(transport.Delivery)) error {
	a.mu.Lock()
	a.subs = append(a.subs, &subscription{streamName: routingKey, handler: handler})
	a.mu.Unlock()
	return nil
}

func (a *Adapter) StartRaw(ctx context.Context) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return nil
	}
	subs := append([]*subscription(nil), a.subs...)
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	for _, sub := range subs {
		sub := sub
		go a.pollShards(runCtx, sub)
	}
	return nil
}

func (a *Adapter) pollShards(ctx context.Context, sub *subscription) {
	shardsOut, err := a.client.ListShards(ctx, &kinesis.ListShardsInput{StreamName: aws.String(sub.streamName)})
	if err != nil {
		return
	}

	var wg sync.WaitGroup
	for _, shard := range shardsOut.Shards {
		wg.Add(1)
		go func(shardID string) {
			defer wg.Done()
			a.pollShard(ctx, sub, shardID)
		}(*shard.ShardId)
	}
	wg.Wait()
}

func (a *Adapter) pollShard(ctx context.Context, sub *subscription, shardID string) {
	iterOut, err := a.client.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(sub.streamName),
		ShardId:            aws.String(shardID),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil {
		return
	}
	iterator := iterOut.ShardIterator

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if iterator == nil {
				return
			}
			out, err := a.client.GetRecords(ctx, &kinesis.GetRecordsInput{ShardIterator: iterator})
			if err != nil {
				return
			}
			for _, rec := range out.Records {
				env := envelope.New(sub.streamName, rec.Data)
				env.MessageID = aws.ToString(rec.PartitionKey)
				env.RoutingKey = sub.streamName

				sub.handler(transport.Delivery{
					Envelope:    env,
					Acknowledge: func() error { return nil },
					Reject:      func(requeue bool) error { return nil },
				})
			}
			iterator = out.NextShardIterator
		}
	}
}

func (a *Adapter) StopRaw(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return nil
}

func (a *Adapter) DisposeRaw() error {
	return a.StopRaw(context.Background())
}
