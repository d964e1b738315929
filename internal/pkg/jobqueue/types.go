package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeClaimMail  JobType = "claim_mail"
	JobTypeLogoMirror JobType = "logo_mirror"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// ClaimMailJobPayload references a successful claim whose confirmation is mailed
type ClaimMailJobPayload struct {
	UserID    uint   `json:"user_id"`
	DealID    uint   `json:"deal_id"`
	ClaimUUID string `json:"claim_uuid"`
}

// ToMap converts the payload to a map for storage
func (p ClaimMailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    p.UserID,
		"deal_id":    p.DealID,
		"claim_uuid": p.ClaimUUID,
	}
}

// ClaimMailJobPayloadFromMap creates a payload from a map
func ClaimMailJobPayloadFromMap(data map[string]interface{}) (*ClaimMailJobPayload, error) {
	var payload ClaimMailJobPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

// LogoMirrorJobPayload references a stored logo file that is copied to object storage
type LogoMirrorJobPayload struct {
	DealID   uint   `json:"deal_id"`
	FilePath string `json:"file_path"`
}

func (p LogoMirrorJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"deal_id":   p.DealID,
		"file_path": p.FilePath,
	}
}

func LogoMirrorJobPayloadFromMap(data map[string]interface{}) (*LogoMirrorJobPayload, error) {
	var payload LogoMirrorJobPayload
	err := decodePayload(data, &payload)
	return &payload, err
}

func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
