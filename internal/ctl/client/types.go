package client

import "encoding/json"

type Job struct {
	ID           string          `json:"id"`
	JobType      string          `json:"job_type"`
	SourceKey    string          `json:"source_key"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	CreatedAt    string          `json:"created_at"`
	StartedAt    *string         `json:"started_at,omitempty"`
	CompletedAt  *string         `json:"completed_at,omitempty"`
}

// JobResult is the decoded form of Job.Result for completed jobs.
type JobResult struct {
	Status             string   `json:"status"`
	TranscodedVideoKey string   `json:"transcoded_video_key,omitempty"`
	ThumbnailKeys      []string `json:"thumbnail_keys,omitempty"`
	PublicBaseURL      string   `json:"public_base_url,omitempty"`
}

func (j *Job) DecodeResult() (*JobResult, error) {
	if len(j.Result) == 0 {
		return nil, nil
	}
	var result JobResult
	if err := json.Unmarshal(j.Result, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type JobList struct {
	Jobs    []Job `json:"jobs"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

type PresignedURL struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
