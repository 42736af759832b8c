package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

const testQueue = "reminders"

func newAsynqQueue(t *testing.T) (*AsynqQueue, *asynq.Inspector, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}
	client := asynq.NewClient(opt)
	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() {
		_ = client.Close()
		_ = inspector.Close()
	})
	return NewAsynqQueue(client, inspector, AsynqConfig{Queue: testQueue}), inspector, mr
}

func taskState(t *testing.T, inspector *asynq.Inspector, id string) (asynq.TaskState, bool) {
	t.Helper()
	info, err := inspector.GetTaskInfo(testQueue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return 0, false
	}
	if err != nil {
		t.Fatalf("get task %s: %v", id, err)
	}
	return info.State, true
}

func TestAsynqQueueReplacesWaitingJob(t *testing.T) {
	q, inspector, _ := newAsynqQueue(t)
	ctx := context.Background()
	key := Key(7, 42)
	at := time.Now().Add(time.Hour)

	if err := q.Delete(ctx, key); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound before enqueue, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, key, []byte(`{"appointment_id":42}`), at.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if state, ok := taskState(t, inspector, key); !ok || state != asynq.TaskStateScheduled {
		t.Fatalf("expected scheduled task under key, got %v (found=%v)", state, ok)
	}
	if _, ok := taskState(t, inspector, key+siblingSuffix); ok {
		t.Fatal("sibling id must stay unused while nothing runs")
	}

	if err := q.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := taskState(t, inspector, key); ok {
		t.Fatal("expected task to be gone")
	}
	if err := q.Delete(ctx, key); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on second delete, got %v", err)
	}
}

func TestAsynqQueueReenqueueWhileRunning(t *testing.T) {
	q, inspector, mr := newAsynqQueue(t)
	ctx := context.Background()
	key := Key(7, 42)

	if err := q.Enqueue(ctx, key, []byte(`{"appointment_id":42}`), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// The worker picked the task up.
	mr.HSet("asynq:{"+testQueue+"}:t:"+key, "state", "active")

	if err := q.Delete(ctx, key); err != nil {
		t.Fatalf("delete of a running job should leave it alone, got %v", err)
	}
	moved := time.Now().Add(2 * time.Hour)
	if err := q.Enqueue(ctx, key, []byte(`{"appointment_id":42}`), moved); err != nil {
		t.Fatalf("enqueue while running: %v", err)
	}
	if err := q.Enqueue(ctx, key, []byte(`{"appointment_id":42}`), moved.Add(time.Minute)); err != nil {
		t.Fatalf("second enqueue while running: %v", err)
	}
	if state, ok := taskState(t, inspector, key+siblingSuffix); !ok || state != asynq.TaskStateScheduled {
		t.Fatalf("expected new job under sibling id, got %v (found=%v)", state, ok)
	}
	if state, _ := taskState(t, inspector, key); state != asynq.TaskStateActive {
		t.Fatalf("running task must not be touched, got %v", state)
	}

	// The run finished; cancelling now removes the follow-up job.
	mr.Del("asynq:{" + testQueue + "}:t:" + key)
	if err := q.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := taskState(t, inspector, key+siblingSuffix); ok {
		t.Fatal("expected sibling task to be gone")
	}
}
