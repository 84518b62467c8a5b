package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openphi/deidentify/internal/document"
	"github.com/openphi/deidentify/pkg/logging"
)

const jobTTL = 24 * time.Hour

// JobStatus represents the lifecycle of a de-identification job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("jobs: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord captures the persisted state of a de-identification request.
// The redacted document itself lives in storage; the record carries only
// the report.
type JobRecord struct {
	JobID        string                    `dynamodbav:"jobId" json:"job_id"`
	FileID       string                    `dynamodbav:"fileId" json:"file_id"`
	Filename     string                    `dynamodbav:"filename" json:"filename"`
	Mode         string                    `dynamodbav:"mode" json:"mode"`
	Threshold    int                       `dynamodbav:"threshold" json:"threshold"`
	Status       JobStatus                 `dynamodbav:"status" json:"status"`
	Report       *document.RedactionReport `dynamodbav:"report,omitempty" json:"report,omitempty"`
	ErrorMessage string                    `dynamodbav:"errorMessage,omitempty" json:"error_message,omitempty"`
	CreatedAt    string                    `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt    string                    `dynamodbav:"updatedAt" json:"updated_at"`
	ExpiresAt    int64                     `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// Store persists job records.
type Store interface {
	PutPending(ctx context.Context, job *JobRecord) error
	MarkCompleted(ctx context.Context, jobID string, report *document.RedactionReport) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
	Get(ctx context.Context, jobID string) (*JobRecord, error)
}

// DynamoStore persists job records to DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("jobs: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("jobs: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

// PutPending inserts a new pending job record.
func (s *DynamoStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("jobs: job cannot be nil")
	}
	now := time.Now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("jobs: marshal job: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("jobs: persist job: %w", err)
	}
	return nil
}

// MarkCompleted updates a job with the final report.
func (s *DynamoStore) MarkCompleted(ctx context.Context, jobID string, report *document.RedactionReport) error {
	if jobID == "" {
		return errors.New("jobs: jobID required")
	}
	reportAttr, err := attributevalue.Marshal(report)
	if err != nil {
		return fmt.Errorf("jobs: marshal report: %w", err)
	}

	return s.updateJob(
		ctx,
		jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusCompleted)},
			":report":  reportAttr,
			":error":   &types.AttributeValueMemberS{Value: ""},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":  "status",
			"#report":  "report",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		"SET #status = :status, #report = :report, #error = :error, #updated = :updated",
	)
}

// MarkFailed updates a job to the failed state.
func (s *DynamoStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if jobID == "" {
		return errors.New("jobs: jobID required")
	}
	return s.updateJob(
		ctx,
		jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(JobStatusFailed)},
			":report":  &types.AttributeValueMemberNULL{Value: true},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		map[string]string{
			"#status":  "status",
			"#report":  "report",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		"SET #status = :status, #report = :report, #error = :error, #updated = :updated",
	)
}

// Get fetches a job by ID.
func (s *DynamoStore) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("jobs: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}

	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("jobs: decode job: %w", err)
	}
	return &job, nil
}

func (s *DynamoStore) updateJob(ctx context.Context, jobID string, values map[string]types.AttributeValue, names map[string]string, expression string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("jobs: update job %s: %w", jobID, err)
	}
	return nil
}
