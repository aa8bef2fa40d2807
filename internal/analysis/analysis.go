// Package analysis inspects generated thumbnails and produces content
// metadata for the job result.
package analysis

import (
	"context"
)

// Result is attached verbatim to the job result payload.
type Result struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Model   string   `json:"model,omitempty"`
}

type Analyzer interface {
	// AnalyzeThumbnails inspects a sample of thumbnail files on disk.
	AnalyzeThumbnails(ctx context.Context, paths []string) (*Result, error)
}

// StubAnalyzer is the default analyzer. It reports analysis as pending,
// which keeps the result shape stable for clients until a real model is
// configured.
type StubAnalyzer struct{}

var _ Analyzer = (*StubAnalyzer)(nil)

func NewStubAnalyzer() *StubAnalyzer {
	return &StubAnalyzer{}
}

func (a *StubAnalyzer) AnalyzeThumbnails(ctx context.Context, paths []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Status:  "pending",
		Message: "AI analysis is not configured for this deployment",
	}, nil
}
