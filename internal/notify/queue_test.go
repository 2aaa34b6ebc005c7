package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisAlertQueueRequeueAndAck(t *testing.T) {
	q, ctx, msgID, requestID := newPendingAlertMessage(t)

	if err := q.requeueAndAck(ctx, msgID, requestID, 1); err != nil {
		t.Fatalf("requeue and ack: %v", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-2",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("read requeued message: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one requeued message, got %+v", streams)
	}
	got := streams[0].Messages[0]
	if got.Values["request_id"] != requestID || got.Values["attempt"] != "1" {
		t.Fatalf("unexpected requeued payload: %+v", got.Values)
	}
}

func TestRedisAlertQueueRequeueFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msgID, requestID := newPendingAlertMessage(t)

	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceledCtx, msgID, requestID, 1); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}

	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}
}

func TestRedisAlertQueueHandleMessageRetriesThenDrops(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	q, err := NewRedisAlertQueue(RedisAlertConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:alerts",
		Group:      "test-group",
		Consumer:   "consumer-1",
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	ctx := context.Background()
	q.ensureGroup(ctx)

	if err := q.EnqueueRequestAlert(ctx, "req-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var attempts []string
	handler := func(_ context.Context, requestID string) error {
		attempts = append(attempts, requestID)
		return errors.New("delivery failed")
	}

	// Each failed handling requeues the alert with a bumped attempt
	// counter until the queue drops it after maxRetries attempts.
	for i := 0; i < q.maxRetries; i++ {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: "consumer-1",
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    0,
		}).Result()
		if err != nil {
			t.Fatalf("readgroup #%d: %v", i, err)
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}

	if len(attempts) != q.maxRetries {
		t.Fatalf("handler attempts = %d, want %d", len(attempts), q.maxRetries)
	}
	length, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if length != 0 {
		t.Fatalf("stream should be empty after drop, len=%d", length)
	}
}

func TestRedisAlertQueueAcksMalformedMessage(t *testing.T) {
	q, ctx, _, _ := newPendingAlertMessage(t)

	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"garbage": "1"},
	}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    10,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}

	called := false
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			q.handleMessage(ctx, msg, func(context.Context, string) error {
				called = true
				return nil
			})
		}
	}
	if called {
		t.Fatal("handler must not run for a message without request_id")
	}
}

func newPendingAlertMessage(t *testing.T) (*RedisAlertQueue, context.Context, string, string) {
	t.Helper()

	redisSrv := miniredis.RunT(t)
	q, err := NewRedisAlertQueue(RedisAlertConfig{
		Addr:       redisSrv.Addr(),
		Stream:     "test:alerts",
		Group:      "test-group",
		Consumer:   "consumer-1",
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}

	ctx := context.Background()
	q.ensureGroup(ctx)

	if err := q.EnqueueRequestAlert(ctx, "req-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "consumer-1",
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    0,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one pending message, got %+v", streams)
	}

	return q, ctx, streams[0].Messages[0].ID, "req-1"
}
