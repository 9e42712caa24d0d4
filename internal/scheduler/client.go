package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"marketpilot/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// redisClientOpt translates the REDIS_URL into asynq connection options.
// Managed Redis providers often terminate TLS with certificates that don't
// match the connection hostname, hence the insecure toggle.
func redisClientOpt(cfg config.SchedulerConfig) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse redis url: %w", err)
	}

	clientOpt := asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}
	if opt.TLSConfig != nil {
		tlsCfg := opt.TLSConfig.Clone()
		if cfg.GetRedisTLSInsecure() {
			tlsCfg.InsecureSkipVerify = true
		}
		clientOpt.TLSConfig = tlsCfg
	} else if cfg.GetRedisTLSInsecure() {
		clientOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return clientOpt, nil
}

// Client enqueues delayed tasks.
type Client struct {
	inner *asynq.Client
	queue string
}

// NewClient creates the task client from configuration.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		inner: asynq.NewClient(opt),
		queue: cfg.GetAsynqQueueName(),
	}, nil
}

// ScheduleReviewReminder enqueues a reminder to run after the given delay.
// The task id is derived from the order, so a reminder that somehow gets
// scheduled twice collapses into one.
func (c *Client) ScheduleReviewReminder(ctx context.Context, marketOrderID string, delay time.Duration) error {
	task, err := NewReviewReminderTask(marketOrderID)
	if err != nil {
		return err
	}
	_, err = c.inner.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.ProcessAt(time.Now().Add(delay)),
		asynq.TaskID("review-reminder:"+marketOrderID),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases the underlying Redis connections.
func (c *Client) Close() error {
	return c.inner.Close()
}
