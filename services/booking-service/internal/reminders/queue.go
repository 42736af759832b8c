package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

// TaskType is the asynq task type handled by the reminder worker.
const TaskType = "reminder:fire"

var ErrJobNotFound = errors.New("job not found")

// Queue holds deferred jobs indexed by key. Enqueue with a fireAt in the past makes the
// job ready immediately. Delete returns ErrJobNotFound when nothing is queued under key.
type Queue interface {
	Enqueue(ctx context.Context, key string, payload []byte, fireAt time.Time) error
	Delete(ctx context.Context, key string) error
}

type AsynqConfig struct {
	Queue    string
	MaxRetry int
}

// AsynqQueue stores jobs in Redis through asynq. The job key is used as the asynq task
// id, which makes it addressable for deletion and unique while queued. A task that is
// already running cannot be removed, so a job re-enqueued meanwhile goes under the
// key's sibling id instead.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	cfg       AsynqConfig
}

// siblingSuffix turns a job key into its second task id.
const siblingSuffix = ":next"

func NewAsynqQueue(client *asynq.Client, inspector *asynq.Inspector, cfg AsynqConfig) *AsynqQueue {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 5
	}
	return &AsynqQueue{client: client, inspector: inspector, cfg: cfg}
}

func (q *AsynqQueue) Enqueue(ctx context.Context, key string, payload []byte, fireAt time.Time) error {
	free, _, err := q.clear(key)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskType, payload)
	opts := []asynq.Option{
		asynq.TaskID(free),
		asynq.Queue(q.cfg.Queue),
		asynq.MaxRetry(q.cfg.MaxRetry),
	}
	if fireAt.After(time.Now()) {
		opts = append(opts, asynq.ProcessAt(fireAt))
	}

	_, err = q.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// A concurrent schedule for the same key won the enqueue; last writer wins.
		if _, _, err := q.clear(key); err != nil {
			return err
		}
		_, err = q.client.EnqueueContext(ctx, task, opts...)
	}
	return err
}

// Delete removes what is queued under key. A task already running is left to finish.
func (q *AsynqQueue) Delete(_ context.Context, key string) error {
	_, found, err := q.clear(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrJobNotFound
	}
	return nil
}

// clear deletes the waiting tasks of key and returns the task id a new job can use.
// found reports whether any task existed, running or not.
func (q *AsynqQueue) clear(key string) (free string, found bool, err error) {
	ids := []string{key, key + siblingSuffix}
	running := map[string]bool{}
	for _, id := range ids {
		info, err := q.inspector.GetTaskInfo(q.cfg.Queue, id)
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		found = true
		if info.State == asynq.TaskStateActive {
			running[id] = true
			continue
		}
		err = q.inspector.DeleteTask(q.cfg.Queue, id)
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return "", false, err
		}
	}
	for _, id := range ids {
		if !running[id] {
			return id, found, nil
		}
	}
	return key, found, nil
}

// MemoryQueue is a Queue for tests and single-process runs without Redis.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]QueuedJob
}

type QueuedJob struct {
	Payload []byte
	FireAt  time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: map[string]QueuedJob{}}
}

func (q *MemoryQueue) Enqueue(_ context.Context, key string, payload []byte, fireAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[key] = QueuedJob{Payload: append([]byte(nil), payload...), FireAt: fireAt}
	return nil
}

func (q *MemoryQueue) Delete(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[key]; !ok {
		return ErrJobNotFound
	}
	delete(q.jobs, key)
	return nil
}

func (q *MemoryQueue) Job(key string) (QueuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[key]
	return j, ok
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
