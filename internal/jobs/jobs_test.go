package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/internal/pipeline"
	"github.com/openphi/deidentify/internal/storage"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"a":1}`))
	require.NoError(t, q.Send(ctx, `{"a":2}`))

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, `{"a":1}`, messages[0].Body)
	assert.Equal(t, `{"a":2}`, messages[1].Body)
}

func TestMemoryQueueReceiveTimeout(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueReceiveCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPayloadRoundTrip(t *testing.T) {
	p, body, err := encodePayload(Payload{
		FileID:    "file-1",
		Filename:  "chart.pdf",
		MimeType:  "application/pdf",
		Mode:      "mask",
		Threshold: 70,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.JobID, "job ID assigned when missing")

	decoded, err := decodePayload(body)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodePayloadRejectsIncomplete(t *testing.T) {
	_, err := decodePayload(`{"job_id":"j1"}`)
	assert.Error(t, err)

	_, err = decodePayload(`not json`)
	assert.Error(t, err)
}

func TestPublisherRecordsPendingAndEnqueues(t *testing.T) {
	q := NewMemoryQueue(4)
	store := NewMemoryStore()
	pub := NewPublisher(q, store)
	ctx := context.Background()

	jobID, err := pub.Publish(ctx, Payload{
		FileID:   "file-1",
		Filename: "chart.pdf",
		MimeType: "application/pdf",
	}, document.ModeSynthetic, 85)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, "file-1", job.FileID)
	assert.Equal(t, string(document.ModeSynthetic), job.Mode)
	assert.Equal(t, 85, job.Threshold)

	messages, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	payload, err := decodePayload(messages[0].Body)
	require.NoError(t, err)
	assert.Equal(t, jobID, payload.JobID)
	assert.Equal(t, 85, payload.Threshold)
}

func TestPublisherQueueFailureSurfaces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Zero-capacity semantics: a cancelled ctx makes Send fail immediately
	// once the buffer is full.
	q := NewMemoryQueue(1)
	require.NoError(t, q.Send(context.Background(), "filler"))

	pub := NewPublisher(q, NewMemoryStore())
	_, err := pub.Publish(ctx, Payload{FileID: "file-1"}, document.ModeMask, 70)
	assert.Error(t, err)
}

// memArtifacts is an in-memory storage.Store for worker tests.
type memArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{objects: make(map[string][]byte)}
}

func (m *memArtifacts) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memArtifacts) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memArtifacts) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	requests []pipeline.Request
	err      error
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return pipeline.Result{}, f.err
	}
	return pipeline.Result{
		Redacted: []byte("%PDF-redacted"),
		Report: document.RedactionReport{
			FileID:        req.FileID,
			Filename:      req.Filename,
			TotalFindings: 2,
			TotalRedacted: 2,
		},
	}, nil
}

func waitForStatus(t *testing.T, store Store, jobID string, want JobStatus) *JobRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestWorkerCompletesJob(t *testing.T) {
	q := NewMemoryQueue(4)
	store := NewMemoryStore()
	artifacts := newMemArtifacts()
	proc := &fakeProcessor{}

	require.NoError(t, artifacts.Put(context.Background(), storage.OriginalKey("file-1"), []byte("%PDF-original"), "application/pdf"))

	pub := NewPublisher(q, store)
	jobID, err := pub.Publish(context.Background(), Payload{
		FileID:   "file-1",
		Filename: "chart.pdf",
		MimeType: "application/pdf",
	}, document.ModePlaceholder, 70)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := NewWorker(q, store, artifacts, proc, 2, nil)
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	job := waitForStatus(t, store, jobID, JobStatusCompleted)
	require.NotNil(t, job.Report)
	assert.Equal(t, 2, job.Report.TotalRedacted)
	assert.Empty(t, job.ErrorMessage)

	redacted, err := artifacts.Get(context.Background(), storage.RedactedKey("file-1"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-redacted", string(redacted))

	reportJSON, err := artifacts.Get(context.Background(), storage.ReportKey("file-1"))
	require.NoError(t, err)
	var rep document.RedactionReport
	require.NoError(t, json.Unmarshal(reportJSON, &rep))
	assert.Equal(t, "file-1", rep.FileID)

	proc.mu.Lock()
	require.Len(t, proc.requests, 1)
	assert.Equal(t, []byte("%PDF-original"), proc.requests[0].Data)
	assert.Equal(t, document.ModePlaceholder, proc.requests[0].Mode)
	proc.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerMarksFailedOnProcessorError(t *testing.T) {
	q := NewMemoryQueue(4)
	store := NewMemoryStore()
	artifacts := newMemArtifacts()
	proc := &fakeProcessor{err: errors.New("classifier unavailable")}

	require.NoError(t, artifacts.Put(context.Background(), storage.OriginalKey("file-2"), []byte("%PDF-original"), "application/pdf"))

	pub := NewPublisher(q, store)
	jobID, err := pub.Publish(context.Background(), Payload{FileID: "file-2", Filename: "x.pdf"}, document.ModeMask, 70)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWorker(q, store, artifacts, proc, 1, nil).Run(ctx)

	job := waitForStatus(t, store, jobID, JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "classifier unavailable")
	assert.Nil(t, job.Report)

	_, err = artifacts.Get(context.Background(), storage.RedactedKey("file-2"))
	assert.ErrorIs(t, err, storage.ErrNotFound, "no redacted artifact on failure")
}

func TestWorkerMarksFailedWhenOriginalMissing(t *testing.T) {
	q := NewMemoryQueue(4)
	store := NewMemoryStore()
	proc := &fakeProcessor{}

	pub := NewPublisher(q, store)
	jobID, err := pub.Publish(context.Background(), Payload{FileID: "ghost", Filename: "x.pdf"}, document.ModeMask, 70)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWorker(q, store, newMemArtifacts(), proc, 1, nil).Run(ctx)

	job := waitForStatus(t, store, jobID, JobStatusFailed)
	assert.Contains(t, job.ErrorMessage, "not found")
}

func TestWorkerDropsMalformedMessage(t *testing.T) {
	q := NewMemoryQueue(4)
	require.NoError(t, q.Send(context.Background(), "not a payload"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewWorker(q, NewMemoryStore(), newMemArtifacts(), &fakeProcessor{}, 1, nil).Run(ctx)

	// The malformed message is consumed without creating any job state.
	assert.Eventually(t, func() bool { return len(q.ch) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewWorkerPanics(t *testing.T) {
	q := NewMemoryQueue(1)
	store := NewMemoryStore()
	artifacts := newMemArtifacts()
	proc := &fakeProcessor{}

	assert.Panics(t, func() { NewWorker(nil, store, artifacts, proc, 1, nil) })
	assert.Panics(t, func() { NewWorker(q, nil, artifacts, proc, 1, nil) })
	assert.Panics(t, func() { NewWorker(q, store, nil, proc, 1, nil) })
	assert.Panics(t, func() { NewWorker(q, store, artifacts, nil, 1, nil) })
}

// fakeDynamo captures DynamoDB calls and serves canned responses.
type fakeDynamo struct {
	putInput    *dynamodb.PutItemInput
	updateInput *dynamodb.UpdateItemInput
	getOutput   *dynamodb.GetItemOutput
	getErr      error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInput = in
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInput = in
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getOutput, f.getErr
}

func TestDynamoStorePutPending(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewDynamoStore(fake, "deidentify-jobs", nil)

	job := &JobRecord{JobID: "j1", FileID: "f1", Filename: "chart.pdf", Mode: "mask", Threshold: 70}
	require.NoError(t, store.PutPending(context.Background(), job))

	require.NotNil(t, fake.putInput)
	assert.Equal(t, "deidentify-jobs", aws.ToString(fake.putInput.TableName))
	assert.Equal(t, "attribute_not_exists(jobId)", aws.ToString(fake.putInput.ConditionExpression))
	assert.Equal(t, JobStatusPending, job.Status)
	assert.NotZero(t, job.ExpiresAt)

	idAttr, ok := fake.putInput.Item["jobId"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "j1", idAttr.Value)
}

func TestDynamoStoreMarkCompleted(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewDynamoStore(fake, "deidentify-jobs", nil)

	rep := &document.RedactionReport{FileID: "f1", TotalRedacted: 3}
	require.NoError(t, store.MarkCompleted(context.Background(), "j1", rep))

	require.NotNil(t, fake.updateInput)
	assert.Equal(t, "attribute_exists(jobId)", aws.ToString(fake.updateInput.ConditionExpression))
	status, ok := fake.updateInput.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, string(JobStatusCompleted), status.Value)
}

func TestDynamoStoreGetMissing(t *testing.T) {
	fake := &fakeDynamo{getOutput: &dynamodb.GetItemOutput{}}
	store := NewDynamoStore(fake, "deidentify-jobs", nil)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestNewDynamoStorePanics(t *testing.T) {
	assert.Panics(t, func() { NewDynamoStore(nil, "table", nil) })
	assert.Panics(t, func() { NewDynamoStore(&fakeDynamo{}, "", nil) })
}
