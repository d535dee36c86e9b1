package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finpath/goalengine/internal/jobs"
	"github.com/finpath/goalengine/internal/model"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s never reached status %s, last: %+v", jobID, want, job)
}

func TestQueuePublishAndConsume(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	processed := make(chan string, 1)
	handler := func(ctx context.Context, job jobs.Job) error {
		processed <- job.GetID()
		return nil
	}
	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.EvaluateTransactionJob{
		Transaction: model.TransactionView{ID: "tx-1", UserID: "u1"},
	}
	if err := queue.PublishEvaluateTransaction(context.Background(), job); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("expected a job ID to be assigned")
	}

	select {
	case got := <-processed:
		if got != job.JobID {
			t.Errorf("handler saw job %s, want %s", got, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached the handler")
	}

	waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
}

func TestQueueMarksFailedJobs(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		return errors.New("boom")
	}
	if err := queue.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.EvaluateTransactionJob{
		Transaction: model.TransactionView{ID: "tx-2", UserID: "u1"},
		MaxRetries:  0,
	}
	if err := queue.PublishEvaluateTransaction(context.Background(), job); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
}

func TestQueueRejectsPublishAfterClose(t *testing.T) {
	queue := NewQueue(1, 1, nil)
	if err := queue.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := queue.PublishEvaluateTransaction(context.Background(), &jobs.EvaluateTransactionJob{})
	if err == nil {
		t.Error("expected publish on closed queue to fail")
	}
}

func TestStoreListJobsFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.SaveJob(ctx, &jobs.EvaluateTransactionJob{
		JobID:       "j1",
		Status:      jobs.JobStatusCompleted,
		Transaction: model.TransactionView{UserID: "u1"},
	})
	_ = store.SaveJob(ctx, &jobs.EvaluateTransactionJob{
		JobID:       "j2",
		Status:      jobs.JobStatusPending,
		Transaction: model.TransactionView{UserID: "u2"},
	})

	byUser, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].JobID != "j1" {
		t.Errorf("user filter failed: %+v", byUser)
	}

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].JobID != "j2" {
		t.Errorf("status filter failed: %+v", byStatus)
	}
}
