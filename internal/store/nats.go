package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
)

// Nats stores values in a JetStream key/value bucket.
type Nats struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

func OpenNats(ctx context.Context, url, bucket string) (*Nats, error) {
	conn, err := nats.Connect(url, nats.Timeout(time.Second*30))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to get jetstream context: %w", err)
	}

	kv, err := natsDo(ctx, func() (nats.KeyValue, error) {
		kv, err := js.KeyValue(bucket)
		switch {
		case errors.Is(err, nats.ErrBucketNotFound):
			kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket, History: 1})
		}
		return kv, err
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind key value bucket %q: %w", bucket, err)
	}

	return &Nats{conn: conn, kv: kv}, nil
}

// The key/value calls take no context, so they run in a goroutine and are
// abandoned once ctx is done.
func natsDo[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (n *Nats) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := natsDo(ctx, func() (nats.KeyValueEntry, error) {
		return n.kv.Get(key)
	})
	if errors.Is(err, nats.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(entry.Value()), true, nil
}

func (n *Nats) Set(ctx context.Context, key, value string) error {
	_, err := natsDo(ctx, func() (uint64, error) {
		return n.kv.Put(key, []byte(value))
	})
	return err
}

func (n *Nats) Close() error {
	return n.conn.Drain()
}
