package redisq

import (
	"context"
	"testing"
	"time"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/DataBiosphere/azul-indexer/internal/queue"
)

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	q := NewClientForTest(c)
	if err := q.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	q := NewClientForTest(c)
	if err := q.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSendBatch_AddsEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "dedup:azul-tally:d1", "1", "NX", "EX", "300")).
		Return(mock.Result(mock.RedisString("OK")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("XADD", "azul-tally", "*", "body", `{"n":1}`, "group", "e1", "dedup", "d1")).
		Return(mock.Result(mock.RedisString("1-1")))

	q := NewClientForTest(c)
	msg := queue.Outgoing{Body: []byte(`{"n":1}`), GroupID: "e1", DedupID: "d1"}
	if err := q.SendBatch(context.Background(), "azul-tally", []queue.Outgoing{msg}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendBatch_DuplicateDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// SET NX misses: the dedup ID was already claimed. No XADD follows.
	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "dedup:azul-tally:d1", "1", "NX", "EX", "300")).
		Return(mock.Result(mock.RedisNil()))

	q := NewClientForTest(c)
	msg := queue.Outgoing{Body: []byte("{}"), GroupID: "e1", DedupID: "d1"}
	if err := q.SendBatch(context.Background(), "azul-tally", []queue.Outgoing{msg}); err != nil {
		t.Fatalf("duplicates are dropped silently: %v", err)
	}
}

func TestSendBatch_RejectsOversizedBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	q := NewClientForTest(c)
	msgs := make([]queue.Outgoing, queue.MaxBatchSize+1)
	if err := q.SendBatch(context.Background(), "azul-tally", msgs); err == nil {
		t.Fatal("expected error for oversized batch")
	}
}

func TestReceiveBatch_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	// Existing consumer group is not an error.
	c.EXPECT().
		Do(gomock.Any(), mock.Match("XGROUP", "CREATE", "azul-tally", "workers", "$", "MKSTREAM")).
		Return(mock.Result(mock.RedisError("BUSYGROUP Consumer Group name already exists")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("XAUTOCLAIM", "azul-tally", "workers", "test-consumer", "300000", "0-0", "COUNT", "10")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("0-0"), mock.RedisArray())))
	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"XREADGROUP", "GROUP", "workers", "test-consumer",
			"COUNT", "10", "BLOCK", "100", "STREAMS", "azul-tally", ">")).
		Return(mock.Result(mock.RedisNil()))

	q := NewClientForTest(c)
	msgs, err := q.ReceiveBatch(context.Background(), "azul-tally", 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestReceiveBatch_DeliversEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	entry := mock.RedisArray(
		mock.RedisString("1-1"),
		mock.RedisArray(
			mock.RedisString("body"), mock.RedisString(`{"n":1}`),
			mock.RedisString("group"), mock.RedisString("e1"),
			mock.RedisString("dedup"), mock.RedisString("d1"),
		),
	)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("XGROUP", "CREATE", "azul-tally", "workers", "$", "MKSTREAM")).
		Return(mock.Result(mock.RedisString("OK")))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("XAUTOCLAIM", "azul-tally", "workers", "test-consumer", "300000", "0-0", "COUNT", "10")).
		Return(mock.Result(mock.RedisArray(mock.RedisString("0-0"), mock.RedisArray())))
	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"XREADGROUP", "GROUP", "workers", "test-consumer",
			"COUNT", "10", "BLOCK", "100", "STREAMS", "azul-tally", ">")).
		Return(mock.Result(mock.RedisArray(
			mock.RedisArray(mock.RedisString("azul-tally"), mock.RedisArray(entry)),
		)))

	q := NewClientForTest(c)
	msgs, err := q.ReceiveBatch(context.Background(), "azul-tally", 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != "1-1" || string(msgs[0].Body) != `{"n":1}` || msgs[0].GroupID != "e1" {
		t.Errorf("unexpected message: %+v", msgs[0])
	}
	if msgs[0].Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 on first delivery", msgs[0].Attempts)
	}
}

func TestAck(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("XACK", "azul-tally", "workers", "1-1", "1-2")).
		Return(mock.Result(mock.RedisInt64(2)))

	q := NewClientForTest(c)
	err := q.Ack(context.Background(), "azul-tally",
		queue.Message{ID: "1-1"}, queue.Message{ID: "1-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAck_NothingToAck(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	q := NewClientForTest(c)
	if err := q.Ack(context.Background(), "azul-tally"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
