package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/reelworks/reelworks/internal/logger"
	"google.golang.org/genai"
)

const labelPrompt = `These images are thumbnails sampled at a fixed interval from one video.
Reply with a JSON array of up to 10 short lowercase labels describing the
video's content, e.g. ["sports","outdoor","crowd"]. Reply with the JSON
array only, no other text.`

// maxSampledThumbnails caps how many frames are sent per request so long
// videos don't blow the prompt size.
const maxSampledThumbnails = 8

// GeminiAnalyzer labels video content by sending sampled thumbnails to the
// Gemini API. On any failure it degrades to the stub result so a broken or
// rate-limited model never fails the job.
type GeminiAnalyzer struct {
	apiKey string
	model  string
}

var _ Analyzer = (*GeminiAnalyzer)(nil)

func NewGeminiAnalyzer(apiKey, model string) *GeminiAnalyzer {
	return &GeminiAnalyzer{apiKey: apiKey, model: model}
}

func (a *GeminiAnalyzer) AnalyzeThumbnails(ctx context.Context, paths []string) (*Result, error) {
	log := logger.FromContext(ctx)

	if len(paths) == 0 {
		return &Result{Status: "skipped", Message: "no thumbnails to analyze"}, nil
	}

	labels, err := a.labelThumbnails(ctx, sampleEvenly(paths, maxSampledThumbnails))
	if err != nil {
		log.Warn("gemini analysis failed, degrading to stub result", "error", err)
		return &Result{
			Status:  "pending",
			Message: fmt.Sprintf("analysis unavailable: %v", err),
		}, nil
	}

	return &Result{
		Status: "completed",
		Labels: labels,
		Model:  a.model,
	}, nil
}

func (a *GeminiAnalyzer) labelThumbnails(ctx context.Context, paths []string) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(labelPrompt)}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read thumbnail %s: %w", path, err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, "image/jpeg"))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from gemini")
	}

	var text string
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return parseLabels(text)
}

func parseLabels(text string) ([]string, error) {
	// Models wrap JSON in markdown fences often enough to strip them here.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var labels []string
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		return nil, fmt.Errorf("parse labels %q: %w", text, err)
	}

	for i, l := range labels {
		labels[i] = strings.ToLower(strings.TrimSpace(l))
	}
	return labels, nil
}

// sampleEvenly picks up to n paths spread across the input, always keeping
// the first frame.
func sampleEvenly(paths []string, n int) []string {
	if len(paths) <= n {
		return paths
	}

	sampled := make([]string, 0, n)
	step := float64(len(paths)) / float64(n)
	for i := 0; i < n; i++ {
		sampled = append(sampled, paths[int(float64(i)*step)])
	}
	return sampled
}
