package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"driveline/dealer-crm-worker/internal/dto"
)

const (
	// LockTTL bounds how long a crashed run can hold the automation lease
	LockTTL = 35 * time.Minute

	// historyLimit caps how much conversation history is handed to the
	// content generator per lead
	historyLimit = 10
)

// AutomationLogger provides structured logging for automation operations
type AutomationLogger struct {
	prefix string
}

func (l *AutomationLogger) log(level, msg string, fields map[string]interface{}) {
	fieldStr := ""
	for k, v := range fields {
		fieldStr += fmt.Sprintf(" %s=%v", k, v)
	}
	log.Printf("[%s] [%s] %s%s", l.prefix, level, msg, fieldStr)
}

func (l *AutomationLogger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

func (l *AutomationLogger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

func (l *AutomationLogger) Error(msg string, fields map[string]interface{}) {
	l.log("ERROR", msg, fields)
}

var automationLog = &AutomationLogger{prefix: "AutomationProcessor"}

// AutomationStore is the persistence surface the coordinator and per-lead
// pipeline consume. Implemented by handlers.SupabaseHandler.
type AutomationStore interface {
	AcquireLock(key string, ttl time.Duration) (bool, error)
	ReleaseLock(key string) error

	CreateRun(source dto.RunSource) (string, error)
	FinalizeRun(runID string, status dto.RunStatus, processed, successful, failed int, errorMessage *string) error

	LoadSettings() (*dto.AutomationSettings, error)

	UnpauseStaleLeads(olderThan time.Time) (int, error)
	ResetDailyCounters(today string) error
	GetDueLeads(now time.Time, limit int) ([]dto.Lead, error)
	CountDueLeads(now time.Time) (int, error)
	GetLeadByID(id string) (*dto.Lead, error)
	PauseLead(leadID string, reason dto.PauseReason, clearOptIn bool) error
	AdvanceLeadSchedule(leadID string, update *dto.ScheduleUpdate) error

	InsertMessage(msg *dto.Message) (string, error)
	GetRecentMessages(leadID string, limit int) ([]dto.Message, error)

	RecordSend(stage dto.SequenceStage, hour, weekday int) error
	GetOptimalTimings() (map[dto.SequenceStage]dto.OptimalTiming, error)
}

// MessageGenerator produces outbound message text from lead context.
// Any failure surfaces as a per-lead pipeline error; the lead stays due.
type MessageGenerator interface {
	Generate(ctx context.Context, mc dto.MessageContext) (string, error)
}

// AutomationProcessor runs the follow-up automation cycle: lock, batch
// selection, concurrent per-lead send pipelines, run-record lifecycle
type AutomationProcessor struct {
	store     AutomationStore
	generator MessageGenerator
}

// NewAutomationProcessor creates a new AutomationProcessor instance
func NewAutomationProcessor(store AutomationStore, generator MessageGenerator) *AutomationProcessor {
	return &AutomationProcessor{
		store:     store,
		generator: generator,
	}
}

// RunCycle executes one automation cycle. A live lock makes this a no-op
// (zero summary, nil error): soft admission control, not a failure. Only
// coordinator-level problems (settings, lead selection, lock store) return
// an error; individual lead failures are counted, never propagated.
func (p *AutomationProcessor) RunCycle(ctx context.Context, source dto.RunSource) (*dto.RunSummary, error) {
	start := time.Now()

	acquired, err := p.store.AcquireLock(dto.LockResourceKey, LockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire automation lock: %w", err)
	}
	if !acquired {
		automationLog.Info("Another run holds the automation lock - skipping cycle", map[string]interface{}{
			"source": source,
		})
		return &dto.RunSummary{}, nil
	}

	runID, err := p.store.CreateRun(source)
	if err != nil {
		p.releaseLock()
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	automationLog.Info("RUN STARTED", map[string]interface{}{
		"run_id":     runID,
		"source":     source,
		"started_at": start.Format(time.RFC3339),
	})

	settings, err := p.store.LoadSettings()
	if err != nil {
		p.failRun(runID, fmt.Sprintf("failed to load settings: %v", err))
		p.releaseLock()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	now := time.Now()

	if settings.AutoUnpauseStaleLeads {
		cutoff := now.AddDate(0, 0, -settings.StalePauseThresholdDays)
		unpaused, err := p.store.UnpauseStaleLeads(cutoff)
		if err != nil {
			automationLog.Warn("Stale-lead unpause failed, continuing", map[string]interface{}{
				"run_id": runID,
				"error":  err.Error(),
			})
		} else if unpaused > 0 {
			automationLog.Info("Unpaused stale leads", map[string]interface{}{
				"run_id":   runID,
				"unpaused": unpaused,
			})
		}
	}

	if err := p.store.ResetDailyCounters(now.Format("2006-01-02")); err != nil {
		automationLog.Warn("Daily counter reset failed, continuing", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}

	queueSize, err := p.store.CountDueLeads(now)
	if err != nil {
		automationLog.Warn("Could not count due leads", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}

	leads, err := p.store.GetDueLeads(now, settings.BatchSize)
	if err != nil {
		p.failRun(runID, fmt.Sprintf("failed to select due leads: %v", err))
		p.releaseLock()
		return nil, fmt.Errorf("failed to select due leads: %w", err)
	}

	automationLog.Info("Processing due leads", map[string]interface{}{
		"run_id":         runID,
		"batch":          len(leads),
		"queue_size":     queueSize,
		"max_concurrent": settings.MaxConcurrentSends,
		"daily_limit":    settings.DailyMessageLimit,
	})

	recommendations, err := p.store.GetOptimalTimings()
	if err != nil {
		automationLog.Warn("Could not load timing recommendations, using static cadence", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
		recommendations = nil
	}

	results, batchErr := p.processBatch(ctx, leads, settings, recommendations)

	successful := 0
	failed := 0
	for _, r := range results {
		if r.Outcome == dto.OutcomeError {
			failed++
		} else {
			successful++
		}
	}

	duration := time.Since(start)

	if batchErr != nil {
		p.failRun(runID, batchErr.Error())
		p.releaseLock()
		automationLog.Error("RUN FAILED", map[string]interface{}{
			"run_id": runID,
			"error":  batchErr.Error(),
		})
		return nil, batchErr
	}

	if err := p.store.FinalizeRun(runID, dto.RunStatusCompleted, len(results), successful, failed, nil); err != nil {
		automationLog.Error("Failed to finalize run record", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
	p.releaseLock()

	automationLog.Info("RUN COMPLETED", map[string]interface{}{
		"run_id":       runID,
		"source":       source,
		"processed":    len(results),
		"successful":   successful,
		"failed":       failed,
		"duration_sec": duration.Seconds(),
	})

	return &dto.RunSummary{
		Processed:      len(results),
		Successful:     successful,
		Failed:         failed,
		QueueSize:      queueSize,
		ProcessingTime: duration.Milliseconds(),
	}, nil
}

// processBatch dispatches per-lead pipelines under a concurrency gate and
// joins before returning. A panic escaping the batch is converted into a
// run-level error so the run record still reaches a terminal status.
func (p *AutomationProcessor) processBatch(
	ctx context.Context,
	leads []dto.Lead,
	settings *dto.AutomationSettings,
	recommendations map[dto.SequenceStage]dto.OptimalTiming,
) (results []dto.LeadResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch processing panic: %v", r)
		}
	}()

	results = make([]dto.LeadResult, len(leads))

	maxConcurrent := settings.MaxConcurrentSends
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, lead := range leads {
		sem <- struct{}{} // Gate before spawning so dispatch follows selection order
		wg.Add(1)
		go func(idx int, leadID string) {
			defer wg.Done()
			defer func() { <-sem }()

			defer func() {
				if r := recover(); r != nil {
					results[idx] = dto.LeadResult{
						LeadID:  leadID,
						Outcome: dto.OutcomeError,
						Error:   fmt.Sprintf("pipeline panic: %v", r),
					}
				}
			}()

			results[idx] = p.processLead(ctx, leadID, settings, recommendations)
		}(i, lead.ID)
	}

	wg.Wait()
	return results, nil
}

// processLead runs the full send pipeline for a single lead: re-validate,
// enforce the daily cap, generate content, persist the message, advance the
// schedule, record the analytics bucket. Any error leaves the lead due so
// the next cycle retries it.
func (p *AutomationProcessor) processLead(
	ctx context.Context,
	leadID string,
	settings *dto.AutomationSettings,
	recommendations map[dto.SequenceStage]dto.OptimalTiming,
) dto.LeadResult {
	result := dto.LeadResult{LeadID: leadID}

	// Re-fetch: state may have changed between selection and dispatch
	// (manual pause, inbound opt-out)
	lead, err := p.store.GetLeadByID(leadID)
	if err != nil {
		result.Outcome = dto.OutcomeError
		result.Error = fmt.Sprintf("failed to reload lead: %v", err)
		return result
	}

	now := time.Now()

	if !leadEligible(lead, now) {
		automationLog.Info("Lead no longer eligible - skipping", map[string]interface{}{
			"lead_id": leadID,
			"opt_in":  lead.AIOptIn,
			"paused":  lead.SequencePaused,
		})
		result.Outcome = dto.OutcomeSkipped
		return result
	}

	// Hard stop, not a retry: the lead needs an explicit unpause
	if lead.MessagesToday >= settings.DailyMessageLimit {
		if err := p.store.PauseLead(leadID, dto.PauseReasonDailyLimit, false); err != nil {
			result.Outcome = dto.OutcomeError
			result.Error = fmt.Sprintf("failed to pause lead at daily limit: %v", err)
			return result
		}
		automationLog.Info("Daily limit reached - lead paused", map[string]interface{}{
			"lead_id":     leadID,
			"sent_today":  lead.MessagesToday,
			"daily_limit": settings.DailyMessageLimit,
		})
		result.Outcome = dto.OutcomePaused
		return result
	}

	history, err := p.store.GetRecentMessages(leadID, historyLimit)
	if err != nil {
		automationLog.Warn("Could not load conversation history, generating without it", map[string]interface{}{
			"lead_id": leadID,
			"error":   err.Error(),
		})
		history = nil
	}

	stage := lead.SequenceStage
	if stage == "" {
		stage = dto.StageInitial
	}

	text, err := p.generator.Generate(ctx, dto.MessageContext{
		LeadName:            lead.FullName(),
		VehicleInterest:     SanitizeVehicleInterest(lead.VehicleInterest),
		Stage:               stage,
		ConversationHistory: history,
	})
	if err != nil {
		result.Outcome = dto.OutcomeError
		result.Error = fmt.Sprintf("content generation failed: %v", err)
		return result
	}

	if _, err := p.store.InsertMessage(&dto.Message{
		LeadID:      leadID,
		Body:        text,
		Direction:   dto.DirectionOut,
		AIGenerated: true,
		Stage:       stage,
		SentAt:      now,
	}); err != nil {
		result.Outcome = dto.OutcomeError
		result.Error = fmt.Sprintf("failed to persist message: %v", err)
		return result
	}

	if err := p.advanceSchedule(lead, stage, recommendations, now); err != nil {
		// Message persisted but schedule not advanced: surface loudly so
		// the duplicate-send window is visible, and leave the lead due
		automationLog.Error("Message sent but schedule advance failed - lead remains due", map[string]interface{}{
			"lead_id": leadID,
			"stage":   stage,
			"error":   err.Error(),
		})
		result.Outcome = dto.OutcomeError
		result.Error = fmt.Sprintf("schedule advance failed after send: %v", err)
		return result
	}

	if err := p.store.RecordSend(stage, now.Hour(), int(now.Weekday())); err != nil {
		automationLog.Warn("Failed to record timing analytics", map[string]interface{}{
			"lead_id": leadID,
			"stage":   stage,
			"error":   err.Error(),
		})
	}

	automationLog.Info("✓ Follow-up sent", map[string]interface{}{
		"lead_id":    leadID,
		"stage":      stage,
		"sent_today": lead.MessagesToday + 1,
	})

	result.Outcome = dto.OutcomeSent
	return result
}

// advanceSchedule moves the lead to its next cadence step, or completes the
// sequence when the cadence is exhausted
func (p *AutomationProcessor) advanceSchedule(
	lead *dto.Lead,
	sentStage dto.SequenceStage,
	recommendations map[dto.SequenceStage]dto.OptimalTiming,
	now time.Time,
) error {
	today := now.Format("2006-01-02")

	next, ok := NextStage(sentStage)
	if !ok {
		// Cadence exhausted: bump counters, clear the due time, pause
		if err := p.store.AdvanceLeadSchedule(lead.ID, &dto.ScheduleUpdate{
			NextSendAt:    nil,
			SequenceStage: sentStage,
			MessagesToday: lead.MessagesToday + 1,
			MessagesTotal: lead.MessagesTotal + 1,
			CounterDate:   today,
		}); err != nil {
			return err
		}
		return p.store.PauseLead(lead.ID, dto.PauseReasonSequenceComplete, false)
	}

	var rec *dto.OptimalTiming
	if recommendations != nil {
		if r, found := recommendations[next]; found {
			rec = &r
		}
	}

	nextSendAt := ComputeNextSendAt(now, sentStage, next, rec)

	return p.store.AdvanceLeadSchedule(lead.ID, &dto.ScheduleUpdate{
		NextSendAt:    &nextSendAt,
		SequenceStage: next,
		MessagesToday: lead.MessagesToday + 1,
		MessagesTotal: lead.MessagesTotal + 1,
		CounterDate:   today,
	})
}

func (p *AutomationProcessor) failRun(runID, errorMessage string) {
	if err := p.store.FinalizeRun(runID, dto.RunStatusFailed, 0, 0, 0, &errorMessage); err != nil {
		automationLog.Error("Failed to mark run as failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
}

func (p *AutomationProcessor) releaseLock() {
	if err := p.store.ReleaseLock(dto.LockResourceKey); err != nil {
		automationLog.Warn("Failed to release automation lock (monitor will reclaim it)", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
