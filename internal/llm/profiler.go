// In file: internal/llm/profiler.go
package llm

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/meteo-chat/backend/internal/api"

	"github.com/redis/go-redis/v9"
)

// ModelProfile tracks latency and reliability telemetry for the configured
// model. It exists for operators, not for routing: the backend always runs a
// single model.
type ModelProfile struct {
	ModelID           string    `json:"model_id" redis:"model_id"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastHealthCheck   time.Time `json:"last_health_check" redis:"last_health_check"`
}

// Profiler persists model telemetry in Redis. A nil Profiler is valid and
// turns every method into a no-op, so the chat path never depends on Redis
// being deployed.
type Profiler struct {
	rdb *redis.Client
}

func NewProfiler(rdb *redis.Client) *Profiler {
	return &Profiler{rdb: rdb}
}

func (p *Profiler) getProfileKey(modelID string) string {
	return fmt.Sprintf("profile:%s", modelID)
}

// GetProfile retrieves the model's profile, creating a default one if it
// does not exist yet.
func (p *Profiler) GetProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	if p == nil {
		return nil, nil
	}
	key := p.getProfileKey(modelID)
	profileData, err := p.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(profileData) == 0 {
		return p.createDefaultProfile(ctx, modelID)
	}

	profile := &ModelProfile{ModelID: modelID}
	profile.AvgLatencyMS, _ = strconv.ParseInt(profileData["avg_latency_ms"], 10, 64)
	profile.Status = profileData["status"]
	profile.ErrorRate, _ = strconv.ParseFloat(profileData["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(profileData["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(profileData["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(profileData["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(profileData["total_output_tokens"], 10, 64)
	profile.LastHealthCheck, _ = time.Parse(time.RFC3339Nano, profileData["last_health_check"])
	return profile, nil
}

func (p *Profiler) createDefaultProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	profile := &ModelProfile{
		ModelID:         modelID,
		AvgLatencyMS:    2000, // Reasonable starting point for the EWMA.
		Status:          "online",
		LastHealthCheck: time.Now(),
	}

	key := p.getProfileKey(modelID)
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, key, "model_id", profile.ModelID)
	pipe.HSet(ctx, key, "avg_latency_ms", profile.AvgLatencyMS)
	pipe.HSet(ctx, key, "status", profile.Status)
	pipe.HSet(ctx, key, "error_rate", profile.ErrorRate)
	pipe.HSet(ctx, key, "total_successes", profile.TotalSuccesses)
	pipe.HSet(ctx, key, "total_failures", profile.TotalFailures)
	pipe.HSet(ctx, key, "last_health_check", profile.LastHealthCheck.Format(time.RFC3339Nano))
	_, err := pipe.Exec(ctx)

	log.Printf("Created new telemetry profile for %s", modelID)
	return profile, err
}

// UpdateProfileOnSuccess records a completed request: latency EWMA, counters
// and token totals.
func (p *Profiler) UpdateProfileOnSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage) {
	if p == nil {
		return
	}
	key := p.getProfileKey(modelID)
	const alpha = 0.1

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		currentLatencyStr, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		currentLatency, _ := strconv.ParseInt(currentLatencyStr, 10, 64)
		newLatency := int64((alpha * float64(latency.Milliseconds())) + ((1.0 - alpha) * float64(currentLatency)))
		_, err = tx.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", newLatency)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("Error updating latency for %s: %v", modelID, err)
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "status", "online")
	_, err = pipe.Exec(ctx)
	if err != nil {
		log.Printf("Error in success update pipeline for %s: %v", modelID, err)
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	totalRequests := successes.Val() + totalFailures
	if totalRequests > 0 {
		errorRate := float64(totalFailures) / float64(totalRequests)
		p.rdb.HSet(ctx, key, "error_rate", errorRate)
	}
}

// UpdateProfileOnFailure records a failed request and marks the model
// degraded until the next successful call or health check.
func (p *Profiler) UpdateProfileOnFailure(ctx context.Context, modelID string) {
	if p == nil {
		return
	}
	key := p.getProfileKey(modelID)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "status", "degraded")
	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("Error in failure update pipeline for %s: %v", modelID, err)
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	totalRequests := totalSuccesses + failures.Val()
	if totalRequests > 0 {
		errorRate := float64(failures.Val()) / float64(totalRequests)
		p.rdb.HSet(ctx, key, "error_rate", errorRate)
	}
}

// UpdateProfileOnHealthCheck records the outcome of a proactive check. It
// ensures a full profile exists first so a health check never creates a
// partial one.
func (p *Profiler) UpdateProfileOnHealthCheck(ctx context.Context, modelID string, isHealthy bool) {
	if p == nil {
		return
	}
	if _, err := p.GetProfile(ctx, modelID); err != nil {
		log.Printf("Error ensuring profile exists during health check for %s: %v", modelID, err)
	}

	status := "offline"
	if isHealthy {
		status = "online"
	}

	key := p.getProfileKey(modelID)
	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, key, "status", status)
	pipe.HSet(ctx, key, "last_health_check", time.Now().Format(time.RFC3339Nano))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("Error updating health check for %s: %v", modelID, err)
	}
}
