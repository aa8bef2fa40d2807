package worker

import (
	"github.com/google/uuid"
	"github.com/reelworks/reelworks/internal/tracing"
)

// Job type names as registered on the queue.
const (
	JobTypeProcess    = "video.process"
	JobTypeTranscode  = "video.transcode"
	JobTypeThumbnails = "video.thumbnails"
	JobTypeProbe      = "video.probe"
)

// KnownJobTypes lists every job type the worker registers, in registration order.
var KnownJobTypes = []string{JobTypeProcess, JobTypeTranscode, JobTypeThumbnails, JobTypeProbe}

func IsKnownJobType(jobType string) bool {
	for _, t := range KnownJobTypes {
		if t == jobType {
			return true
		}
	}
	return false
}

// Payload is the queue payload shared by all video job types. The job type
// on the queue message decides which pipeline stages run.
type Payload struct {
	JobID     uuid.UUID            `json:"job_id"`
	SourceKey string               `json:"source_key"`
	Trace     tracing.TraceCarrier `json:"trace,omitempty"`
}

func NewPayload(jobID uuid.UUID, sourceKey string) Payload {
	return Payload{
		JobID:     jobID,
		SourceKey: sourceKey,
	}
}

func (p *Payload) validate() error {
	if p.JobID == uuid.Nil {
		return errMissingJobID
	}
	if p.SourceKey == "" {
		return errMissingSourceKey
	}
	return nil
}
