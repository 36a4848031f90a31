package config

import (
	"fmt"
	"strings"
)

// Validate checks all configuration values and fails fast with a sentinel
// error when any is unusable. Missing API keys are a configuration error at
// startup, never retried.
func (c *Config) Validate() error {
	if len(dedupeKeys(c.GeminiAPIKeys)) == 0 {
		return fmt.Errorf("%w: set GEMINI_API_KEY or GEMINI_API_KEY_1..%d", ErrNoAPIKeys, MaxEnvAPIKeys)
	}

	if strings.TrimSpace(c.GenerationModel) == "" {
		return fmt.Errorf("%w: generation_model is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}
	if c.EmbedderDimension <= 0 || c.EmbedderDimension > 3072 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}
	if c.RetryFactor < 1 || c.RetryFactor > 2 {
		return fmt.Errorf("%w: retry_factor must be 1 or 2, got %d", ErrInvalidPipeline, c.RetryFactor)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.SearchTopK <= 0 || c.SearchTopK > 100 {
		return fmt.Errorf("%w: search_top_k %d", ErrInvalidPipeline, c.SearchTopK)
	}
	if strings.TrimSpace(c.DefaultTenant) == "" {
		return fmt.Errorf("%w: default_tenant is empty", ErrInvalidPipeline)
	}

	if c.PipelineAttempts < 1 || c.PipelineAttempts > 10 {
		return fmt.Errorf("%w: pipeline_attempts %d", ErrInvalidPipeline, c.PipelineAttempts)
	}
	if c.MaxPolicyMatches < 1 || c.MaxPolicyMatches > 20 {
		return fmt.Errorf("%w: max_policy_matches %d", ErrInvalidPipeline, c.MaxPolicyMatches)
	}
	if c.RiskLimit < 1 || c.RiskLimit > 50 {
		return fmt.Errorf("%w: risk_limit %d", ErrInvalidPipeline, c.RiskLimit)
	}
	if c.MaxFieldLen < 100 || c.MaxFieldLen > 10000 {
		return fmt.Errorf("%w: max_field_len %d", ErrInvalidPipeline, c.MaxFieldLen)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	return nil
}

// dedupeKeys removes duplicates and blanks, preserving first-seen order.
func dedupeKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// APIKeys returns the deduplicated, ordered credential list.
func (c *Config) APIKeys() []string {
	return dedupeKeys(c.GeminiAPIKeys)
}
