package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"opspulse_backend/internal/signals/domain"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string              { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool        { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string        { return "opspulse-test" }
func (c testSchedulerConfig) GetAsynqConcurrency() int         { return 1 }
func (c testSchedulerConfig) GetScanInterval() time.Duration   { return time.Minute }
func (c testSchedulerConfig) GetLadderInterval() time.Duration { return time.Minute }

func newTestClient(t *testing.T) (*Client, *asynq.Inspector) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr()}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	return client, inspector
}

func pendingTasks(t *testing.T, inspector *asynq.Inspector) []*asynq.TaskInfo {
	t.Helper()
	tasks, err := inspector.ListPendingTasks("opspulse-test")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	return tasks
}

func TestEnqueueScanPass(t *testing.T) {
	client, inspector := newTestClient(t)

	err := client.EnqueueScanPass(context.Background(), []domain.Category{domain.CategoryFinance})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tasks := pendingTasks(t, inspector)
	if len(tasks) != 1 {
		t.Fatalf("pending = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskScanPass {
		t.Fatalf("task type = %s, want %s", tasks[0].Type, TaskScanPass)
	}

	var payload ScanPassPayload
	if err := json.Unmarshal(tasks[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Categories) != 1 || payload.Categories[0] != "finance" {
		t.Fatalf("payload = %+v, want finance only", payload)
	}
}

func TestEnqueueDispatchRoundTrips(t *testing.T) {
	client, inspector := newTestClient(t)

	want := domain.DispatchRequest{
		ItemID:    uuid.New(),
		Kind:      domain.KindFollowUp,
		StepIndex: 2,
		Category:  domain.CategoryCRM,
		Severity:  domain.SeverityHigh,
		Action:    domain.ActionAICall,
		Channel:   domain.ChannelCall,
		Message:   "checking in about the stalled deal",
		Subject:   domain.SubjectRef{Domain: domain.CategoryCRM, EntityID: "deal-7"},
	}
	if err := client.EnqueueDispatch(context.Background(), want); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tasks := pendingTasks(t, inspector)
	if len(tasks) != 1 {
		t.Fatalf("pending = %d, want 1", len(tasks))
	}

	got, err := ParseDispatchRequestPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if got != want {
		t.Fatalf("request = %+v, want %+v", got, want)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}
