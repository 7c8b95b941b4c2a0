package redis

import (
	"context"
	"time"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// Deduplicator claims submission IDs so that a message redelivered after a
// worker restart is processed once.
type Deduplicator struct {
	client *Client
	ttl    time.Duration
}

// NewDeduplicator keeps claims for ttl.
func NewDeduplicator(client *Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduplicator{client: client, ttl: ttl}
}

// Claim returns true when id was not claimed before.
func (d *Deduplicator) Claim(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	if d.client.isClosed() {
		return false, ErrClientClosed
	}
	ok, err := d.client.rdb.SetNX(ctx, d.client.Key("submission", id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "claim submission").WithDetail(id)
	}
	return ok, nil
}

// Release drops a claim so that a failed submission can be retried.
func (d *Deduplicator) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := d.client.rdb.Del(ctx, d.client.Key("submission", id)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "release submission").WithDetail(id)
	}
	return nil
}
