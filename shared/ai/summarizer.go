package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"tutorial-ranker/internal/models"
	"tutorial-ranker/shared/config"
)

const maxTitleLength = 200

// generateFunc sends a text prompt to a model and returns the response text.
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Summarizer writes short digest blurbs for ranked tutorials with Gemini.
type Summarizer struct {
	generate generateFunc
	logger   zerolog.Logger
}

func NewSummarizer(ctx context.Context, cfg *config.AIConfig, logger zerolog.Logger) (*Summarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	generate := func(ctx context.Context, prompt string) (string, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
		}
		result, err := client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		return result.Text(), nil
	}
	return newSummarizer(generate, logger), nil
}

func newSummarizer(generate generateFunc, logger zerolog.Logger) *Summarizer {
	return &Summarizer{generate: generate, logger: logger}
}

// Summarize returns a one or two sentence blurb per video ID for results, in a
// single model call. Results the model skips are absent from the map.
func (s *Summarizer) Summarize(ctx context.Context, query string, results []*models.RankedResult) (map[string]string, error) {
	if len(results) == 0 {
		return map[string]string{}, nil
	}

	response, err := s.generate(ctx, buildSummaryPrompt(query, results))
	if err != nil {
		return nil, fmt.Errorf("failed to generate summaries: %w", err)
	}
	if strings.TrimSpace(response) == "" {
		return nil, fmt.Errorf("empty summary response (content filtering or API issue)")
	}

	summaries, err := s.parseSummaryResponse(response, results)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	s.logger.Debug().Int("requested", len(results)).Int("received", len(summaries)).Msg("summaries generated")
	return summaries, nil
}

func buildSummaryPrompt(query string, results []*models.RankedResult) string {
	var videos strings.Builder
	for _, r := range results {
		fmt.Fprintf(&videos, "- video_id: %s\n  rank: %d\n  title: %s\n  duration: %.0f minutes\n  quality score: %.3f\n",
			r.VideoID, r.Rank, truncateString(r.Title, maxTitleLength), r.DurationMinutes, r.PredictedScore)
	}

	return fmt.Sprintf(`You are helping a learner choose long-form tutorials about "%s".
The videos below were ranked by a model trained on audience engagement and comment sentiment.

VIDEOS:
%s
INSTRUCTIONS:
1. For each video, write one or two sentences on what a learner can expect from it, based on the title and length
2. Do not invent facts about the instructor or channel
3. Keep the learner's topic in mind and mention who the video suits best

Respond with JSON only, in this format:
{
  "summaries": [
    {"video_id": "the video_id from the list", "summary": "your blurb"}
  ]
}`, query, videos.String())
}

func (s *Summarizer) parseSummaryResponse(response string, results []*models.RankedResult) (map[string]string, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("no JSON found in response: %s", truncateString(response, 200))
	}
	jsonStr := response[startIdx : endIdx+1]

	var parsed struct {
		Summaries []struct {
			VideoID string `json:"video_id"`
			Summary string `json:"summary"`
		} `json:"summaries"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		sanitized := sanitizeJSON(jsonStr)
		if sanitizedErr := json.Unmarshal([]byte(sanitized), &parsed); sanitizedErr != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w (sanitized version also failed: %v)", err, sanitizedErr)
		}
		s.logger.Warn().Msg("had to sanitize malformed JSON in summary response")
	}

	known := make(map[string]bool, len(results))
	for _, r := range results {
		known[r.VideoID] = true
	}

	summaries := make(map[string]string, len(parsed.Summaries))
	for _, item := range parsed.Summaries {
		summary := strings.TrimSpace(item.Summary)
		if !known[item.VideoID] || summary == "" {
			continue
		}
		summaries[item.VideoID] = summary
	}
	return summaries, nil
}

// sanitizeJSON escapes stray quotes inside "key": "value" lines, the most common
// defect in model-written JSON.
func sanitizeJSON(jsonStr string) string {
	lines := strings.Split(jsonStr, "\n")
	sanitized := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colonIdx := strings.Index(line, "\":")
		if colonIdx != -1 {
			beforeColon := line[:colonIdx+2]
			afterColon := strings.TrimSpace(line[colonIdx+2:])
			if strings.HasPrefix(afterColon, "\"") {
				lastQuoteIdx := strings.LastIndex(afterColon, "\"")
				if lastQuoteIdx > 0 {
					content := strings.ReplaceAll(afterColon[1:lastQuoteIdx], `\"`, `"`)
					content = strings.ReplaceAll(content, `"`, `\"`)
					line = beforeColon + " \"" + content + "\"" + afterColon[lastQuoteIdx+1:]
				}
			}
		}
		sanitized = append(sanitized, line)
	}

	return strings.Join(sanitized, "\n")
}

func truncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}
