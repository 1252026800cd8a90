// Package classifier implements the LLM-backed phone classification
// stage: a single vendor-bound Transport sends
// rendered prompts, responses are parsed tolerantly, and any candidate
// whose returned number doesn't align with what was sent is retried in
// a batched second pass before being marked as a persistent error.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tariktz/contactminer/internal/model"
)

const (
	ErrorTagPersistentMismatch = "Error_PersistentMismatchAfterRetries"
	ErrorTagJSONParse          = "Error_InitialJsonParse"
	ErrorTagEmptyResponse      = "Error_InitialEmptyResponse"
	ErrorTagNoJSONBlock        = "Error_InitialNoJsonBlock"
	ErrorTagNotProcessed       = "Error_NotProcessed"
	ErrorTagPromptLoading      = "Error_PromptLoading"
	ErrorTagCountMismatch      = "Error_LLMItemCountMismatch"
)

// Options configures one Classify call.
type Options struct {
	PromptTemplatePath   string
	ContextDir           string
	FilePrefix           string
	MaxRetriesOnMismatch int
	TransportMaxAttempts int
	BackoffBase          time.Duration
	BackoffMax           time.Duration
}

// Result is Classify's return value: results aligned 1:1 with the
// input candidates slice, the raw response text of the final attempt,
// and aggregated token usage.
type Result struct {
	Results     []model.ClassifiedPhone
	RawResponse string
	Usage       TokenUsage
}

// Classify implements the public contract:
// classify(candidates, prompt_template, context_dir, file_prefix) ->
// (results_aligned_with_candidates, raw_response_text, token_usage).
func Classify(ctx context.Context, candidates []model.PhoneCandidate, transport Transport, opts Options) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, nil
	}

	persistPromptTemplate(opts.ContextDir, opts.PromptTemplatePath)

	results := make([]model.ClassifiedPhone, len(candidates))
	pending := make([]int, len(candidates))
	for i := range candidates {
		pending[i] = i
	}

	var lastRaw string
	var totalUsage TokenUsage

	for attempt := 0; attempt <= opts.MaxRetriesOnMismatch && len(pending) > 0; attempt++ {
		batch := make([]model.PhoneCandidate, len(pending))
		for i, idx := range pending {
			batch[i] = candidates[idx]
		}

		prompt, err := renderPrompt(opts.PromptTemplatePath, batch)
		if err != nil {
			tagAll(results, pending, candidates, ErrorTagPromptLoading)
			return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
		}

		raw, usage, sendErr := sendWithRetry(ctx, transport, prompt, opts)
		totalUsage.InputTokens += usage.InputTokens
		totalUsage.OutputTokens += usage.OutputTokens

		if sendErr != nil {
			tagAll(results, pending, candidates, fmt.Sprintf("Error_InitialApiError_%s", classifyTransportErr(sendErr)))
			return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
		}
		lastRaw = raw

		persistContext(opts.ContextDir, opts.FilePrefix, attempt, prompt, raw)

		if raw == "" {
			tagAll(results, pending, candidates, ErrorTagEmptyResponse)
			return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
		}

		parsed, parseErr := parseResponse(raw)
		if parseErr != nil {
			tag := ErrorTagJSONParse
			if isNoJSONBlockErr(parseErr) {
				tag = ErrorTagNoJSONBlock
			}
			tagAll(results, pending, candidates, tag)
			return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
		}

		if len(parsed.ExtractedNumbers) != len(batch) {
			tagAll(results, pending, candidates, ErrorTagCountMismatch)
			return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
		}

		var mismatched []int
		for i, idx := range pending {
			item := parsed.ExtractedNumbers[i]
			if item.Number != candidates[idx].Number {
				mismatched = append(mismatched, idx)
				continue
			}
			results[idx] = model.ClassifiedPhone{
				Number:                   item.Number,
				Type:                     item.Type,
				Classification:           model.Classification(item.Classification),
				SourceURL:                candidates[idx].SourceURL,
				OriginalInputCompanyName: candidates[idx].OriginalInputCompanyName,
			}
		}
		pending = mismatched
	}

	if len(pending) > 0 {
		tagAll(results, pending, candidates, ErrorTagPersistentMismatch)
	}

	return Result{Results: results, RawResponse: lastRaw, Usage: totalUsage}, nil
}

func tagAll(results []model.ClassifiedPhone, indices []int, candidates []model.PhoneCandidate, tag string) {
	for _, idx := range indices {
		results[idx] = model.ClassifiedPhone{
			Number:                   candidates[idx].Number,
			SourceURL:                candidates[idx].SourceURL,
			OriginalInputCompanyName: candidates[idx].OriginalInputCompanyName,
			ErrorTag:                 tag,
		}
	}
}

// sendWithRetry retries failed Send calls with exponential backoff:
// three attempts by default, 2s->10s. Every Send error is retried; no
// distinction is made between transient and permanent failures.
func sendWithRetry(ctx context.Context, transport Transport, prompt string, opts Options) (string, TokenUsage, error) {
	maxAttempts := opts.TransportMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	max := opts.BackoffMax
	if max <= 0 {
		max = 10 * time.Second
	}

	var lastErr error
	delay := base
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, usage, err := transport.Send(ctx, prompt)
		if err == nil {
			return text, usage, nil
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", TokenUsage{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > max {
			delay = max
		}
	}
	return "", TokenUsage{}, lastErr
}

func classifyTransportErr(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	return "Unknown"
}

// persistPromptTemplate copies templatePath to
// contextDir/llm_prompt_template.txt once per run, idempotently: an
// existence check skips the common case, and O_EXCL makes the copy
// safe against concurrent canonicals racing to write it first.
// Best-effort, like persistContext.
func persistPromptTemplate(contextDir, templatePath string) {
	if contextDir == "" || templatePath == "" {
		return
	}
	dest := filepath.Join(contextDir, "llm_prompt_template.txt")
	if _, err := os.Stat(dest); err == nil {
		return
	}
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return
	}
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(raw)
}

// persistContext writes the rendered prompt and raw response for one
// attempt under contextDir/<filePrefix>_attempt<n>.{prompt,response}.txt,
// best-effort (a write failure never aborts classification).
func persistContext(contextDir, filePrefix string, attempt int, prompt, response string) {
	if contextDir == "" {
		return
	}
	if err := os.MkdirAll(contextDir, 0o755); err != nil {
		return
	}
	base := fmt.Sprintf("%s_attempt%d", filePrefix, attempt)
	_ = os.WriteFile(filepath.Join(contextDir, base+".prompt.txt"), []byte(prompt), 0o644)
	_ = os.WriteFile(filepath.Join(contextDir, base+".response.txt"), []byte(response), 0o644)
}
