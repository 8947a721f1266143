package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"driveline/dealer-crm-worker/internal/dto"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// Table names for the automation schema
const (
	tableLeads     = "leads"
	tableMessages  = "messages"
	tableRuns      = "ai_automation_runs"
	tableLocks     = "ai_automation_locks"
	tableAnalytics = "ai_message_analytics"
	tableTiming    = "ai_optimal_timing"
	tableSettings  = "ai_automation_settings"
)

// SupabaseHandler handles database operations using Supabase. It implements
// the store interfaces consumed by the services package.
type SupabaseHandler struct {
	client *supabase.Client
}

// NewSupabaseHandler creates a new SupabaseHandler instance
// url is the Supabase project URL (e.g., "https://xxx.supabase.co")
// key is the Supabase service role key
func NewSupabaseHandler(url, key string) (*SupabaseHandler, error) {
	if url == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("supabase key is required")
	}

	log.Printf("[SupabaseHandler] Initializing with URL: %s", url)

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to create client: %v", err)
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	log.Printf("[SupabaseHandler] Successfully created Supabase client")

	return &SupabaseHandler{
		client: client,
	}, nil
}

// GetClient returns the underlying Supabase client for advanced operations
func (h *SupabaseHandler) GetClient() *supabase.Client {
	return h.client
}

// ---------------------------------------------------------------------------
// Locks
// ---------------------------------------------------------------------------

// AcquireLock tries to take the automation lease. Returns false without error
// when another run already holds a live lock. An expired lock row is deleted
// and the lease re-taken.
func (h *SupabaseHandler) AcquireLock(key string, ttl time.Duration) (bool, error) {
	log.Printf("[SupabaseHandler] AcquireLock: key=%s, ttl=%s", key, ttl)

	data, _, err := h.client.From(tableLocks).Select("*", "exact", false).Eq("resource_key", key).Execute()
	if err != nil {
		return false, fmt.Errorf("failed to query lock: %w", err)
	}

	var locks []dto.AutomationLock
	if err := json.Unmarshal(data, &locks); err != nil {
		return false, fmt.Errorf("failed to parse lock response: %w", err)
	}

	now := time.Now().UTC()

	if len(locks) > 0 {
		if locks[0].ExpiresAt.After(now) {
			log.Printf("[SupabaseHandler] Lock held until %s", locks[0].ExpiresAt.Format(time.RFC3339))
			return false, nil
		}
		// Stale lease from a crashed run
		if _, _, err := h.client.From(tableLocks).Delete("", "").Eq("resource_key", key).Execute(); err != nil {
			return false, fmt.Errorf("failed to clear expired lock: %w", err)
		}
		log.Printf("[SupabaseHandler] Cleared expired lock (expired %s)", locks[0].ExpiresAt.Format(time.RFC3339))
	}

	insertData := map[string]interface{}{
		"resource_key": key,
		"acquired_at":  now.Format(time.RFC3339),
		"expires_at":   now.Add(ttl).Format(time.RFC3339),
	}

	if _, _, err := h.client.From(tableLocks).Insert(insertData, false, "", "", "").Execute(); err != nil {
		// Unique key on resource_key: losing the insert race means someone
		// else got the lease between our read and write
		log.Printf("[SupabaseHandler] Lock insert lost the race: %v", err)
		return false, nil
	}

	log.Printf("[SupabaseHandler] Lock acquired, expires %s", now.Add(ttl).Format(time.RFC3339))
	return true, nil
}

// ReleaseLock deletes the automation lease row
func (h *SupabaseHandler) ReleaseLock(key string) error {
	_, _, err := h.client.From(tableLocks).Delete("", "").Eq("resource_key", key).Execute()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// DeleteExpiredLocks removes every lease whose TTL has lapsed and returns how
// many were deleted
func (h *SupabaseHandler) DeleteExpiredLocks(now time.Time) (int, error) {
	data, _, err := h.client.From(tableLocks).
		Delete("representation", "").
		Lt("expires_at", now.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired locks: %w", err)
	}

	var deleted []dto.AutomationLock
	if err := json.Unmarshal(data, &deleted); err != nil {
		return 0, fmt.Errorf("failed to parse delete response: %w", err)
	}

	return len(deleted), nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun inserts a run record in `running` status and returns its ID
func (h *SupabaseHandler) CreateRun(source dto.RunSource) (string, error) {
	insertData := map[string]interface{}{
		"status":     string(dto.RunStatusRunning),
		"source":     string(source),
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}

	data, _, err := h.client.From(tableRuns).Insert(insertData, false, "", "", "").Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to insert run record: %v", err)
		return "", fmt.Errorf("failed to insert run record: %w", err)
	}

	var inserted []map[string]interface{}
	if err := json.Unmarshal(data, &inserted); err != nil {
		return "", fmt.Errorf("failed to parse run insert response: %w", err)
	}

	if len(inserted) == 0 {
		return "", fmt.Errorf("no run record was inserted")
	}

	runID, ok := inserted[0]["id"].(string)
	if !ok {
		return "", fmt.Errorf("failed to get run ID from response")
	}

	log.Printf("[SupabaseHandler] Run record created: id=%s source=%s", runID, source)
	return runID, nil
}

// FinalizeRun moves a run to a terminal status with its counters
func (h *SupabaseHandler) FinalizeRun(runID string, status dto.RunStatus, processed, successful, failed int, errorMessage *string) error {
	update := map[string]interface{}{
		"status":           string(status),
		"completed_at":     time.Now().UTC().Format(time.RFC3339),
		"leads_processed":  processed,
		"leads_successful": successful,
		"leads_failed":     failed,
	}
	if errorMessage != nil {
		update["error_message"] = *errorMessage
	}

	_, _, err := h.client.From(tableRuns).Update(update, "", "").Eq("id", runID).Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to finalize run: %v", err)
		return fmt.Errorf("failed to finalize run: %w", err)
	}

	return nil
}

// FailRun marks a run failed with an error message. Used by the cleanup
// monitor to reclaim stuck runs.
func (h *SupabaseHandler) FailRun(runID string, errorMessage string) error {
	return h.FinalizeRun(runID, dto.RunStatusFailed, 0, 0, 0, &errorMessage)
}

// GetStuckRuns returns runs still marked running that started before the cutoff
func (h *SupabaseHandler) GetStuckRuns(olderThan time.Time) ([]dto.AutomationRun, error) {
	data, _, err := h.client.From(tableRuns).
		Select("*", "exact", false).
		Eq("status", string(dto.RunStatusRunning)).
		Lt("started_at", olderThan.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck runs: %w", err)
	}

	var runs []dto.AutomationRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to parse stuck runs response: %w", err)
	}

	return runs, nil
}

// CountRuns counts runs in a status, optionally bounded to a trailing window.
// Terminal statuses are windowed on completion time, running on start time.
func (h *SupabaseHandler) CountRuns(status dto.RunStatus, since *time.Time) (int, error) {
	query := h.client.From(tableRuns).Select("id", "exact", true).Eq("status", string(status))

	if since != nil {
		field := "completed_at"
		if status == dto.RunStatusRunning {
			field = "started_at"
		}
		query = query.Gte(field, since.UTC().Format(time.RFC3339))
	}

	_, count, err := query.Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count %s runs: %w", status, err)
	}

	return int(count), nil
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

type settingRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LoadSettings reads the key-value settings table into typed settings.
// Missing rows and unparseable values fall back to the defaults.
func (h *SupabaseHandler) LoadSettings() (*dto.AutomationSettings, error) {
	data, _, err := h.client.From(tableSettings).Select("key,value", "exact", false).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	var rows []settingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse settings response: %w", err)
	}

	settings := dto.DefaultAutomationSettings()

	for _, row := range rows {
		switch row.Key {
		case "batch_size":
			parseIntSetting(row, &settings.BatchSize)
		case "max_concurrent_sends":
			parseIntSetting(row, &settings.MaxConcurrentSends)
		case "daily_message_limit_per_lead":
			parseIntSetting(row, &settings.DailyMessageLimit)
		case "auto_unpause_stale_leads":
			settings.AutoUnpauseStaleLeads = row.Value == "true"
		case "stale_pause_threshold_days":
			parseIntSetting(row, &settings.StalePauseThresholdDays)
		}
	}

	return settings, nil
}

func parseIntSetting(row settingRow, target *int) {
	var v int
	if _, err := fmt.Sscanf(row.Value, "%d", &v); err != nil || v <= 0 {
		log.Printf("[SupabaseHandler] Ignoring unparseable setting %s=%q", row.Key, row.Value)
		return
	}
	*target = v
}

// ---------------------------------------------------------------------------
// Leads
// ---------------------------------------------------------------------------

// GetDueLeads selects the batch for one cycle: opted in, not paused, with a
// due (or never-set) send time, oldest due first
func (h *SupabaseHandler) GetDueLeads(now time.Time, limit int) ([]dto.Lead, error) {
	nowStr := now.UTC().Format(time.RFC3339)

	data, _, err := h.client.From(tableLeads).
		Select("*", "exact", false).
		Eq("ai_opt_in", "true").
		Eq("ai_sequence_paused", "false").
		Or(fmt.Sprintf("next_ai_send_at.is.null,next_ai_send_at.lte.%s", nowStr), "").
		Order("next_ai_send_at", &postgrest.OrderOpts{Ascending: true, NullsFirst: true}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query due leads: %w", err)
	}

	var leads []dto.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("failed to parse due leads response: %w", err)
	}

	log.Printf("[SupabaseHandler] GetDueLeads: %d leads due", len(leads))
	return leads, nil
}

// CountDueLeads returns the full due-queue depth, independent of batch size
func (h *SupabaseHandler) CountDueLeads(now time.Time) (int, error) {
	nowStr := now.UTC().Format(time.RFC3339)

	_, count, err := h.client.From(tableLeads).
		Select("id", "exact", true).
		Eq("ai_opt_in", "true").
		Eq("ai_sequence_paused", "false").
		Or(fmt.Sprintf("next_ai_send_at.is.null,next_ai_send_at.lte.%s", nowStr), "").
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to count due leads: %w", err)
	}

	return int(count), nil
}

// GetLeadByID retrieves a single lead row
func (h *SupabaseHandler) GetLeadByID(id string) (*dto.Lead, error) {
	data, _, err := h.client.From(tableLeads).Select("*", "exact", false).Eq("id", id).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	var leads []dto.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("failed to parse lead response: %w", err)
	}

	if len(leads) == 0 {
		return nil, fmt.Errorf("lead not found with id %s", id)
	}

	return &leads[0], nil
}

// PauseLead suspends a lead's cadence and clears its due time. clearOptIn
// additionally revokes consent (opt-out handling).
func (h *SupabaseHandler) PauseLead(leadID string, reason dto.PauseReason, clearOptIn bool) error {
	update := map[string]interface{}{
		"ai_sequence_paused": true,
		"ai_pause_reason":    string(reason),
		"ai_paused_at":       time.Now().UTC().Format(time.RFC3339),
		"next_ai_send_at":    nil,
	}
	if clearOptIn {
		update["ai_opt_in"] = false
	}

	_, _, err := h.client.From(tableLeads).Update(update, "", "").Eq("id", leadID).Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to pause lead %s: %v", leadID, err)
		return fmt.Errorf("failed to pause lead: %w", err)
	}

	log.Printf("[SupabaseHandler] Lead paused: id=%s reason=%s", leadID, reason)
	return nil
}

// UnpauseStaleLeads resumes leads that were auto-paused by the stale timeout
// before the cutoff, making them due immediately. Returns how many resumed.
func (h *SupabaseHandler) UnpauseStaleLeads(olderThan time.Time) (int, error) {
	now := time.Now().UTC()

	update := map[string]interface{}{
		"ai_sequence_paused": false,
		"ai_pause_reason":    nil,
		"ai_paused_at":       nil,
		"next_ai_send_at":    now.Format(time.RFC3339),
	}

	data, _, err := h.client.From(tableLeads).
		Update(update, "representation", "").
		Eq("ai_sequence_paused", "true").
		Eq("ai_pause_reason", string(dto.PauseReasonStaleTimeout)).
		Lt("ai_paused_at", olderThan.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to unpause stale leads: %w", err)
	}

	var updated []map[string]interface{}
	if err := json.Unmarshal(data, &updated); err != nil {
		return 0, fmt.Errorf("failed to parse unpause response: %w", err)
	}

	return len(updated), nil
}

// ResetDailyCounters zeroes ai_messages_sent_today for opted-in leads whose
// counter date is behind today. Leads already counted today are untouched.
func (h *SupabaseHandler) ResetDailyCounters(today string) error {
	update := map[string]interface{}{
		"ai_messages_sent_today": 0,
		"ai_counter_date":        today,
	}

	_, _, err := h.client.From(tableLeads).
		Update(update, "", "").
		Eq("ai_opt_in", "true").
		Or(fmt.Sprintf("ai_counter_date.is.null,ai_counter_date.lt.%s", today), "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}

	return nil
}

// AdvanceLeadSchedule writes the post-send schedule state back to the lead.
// A nil NextSendAt clears the due time (sequence complete).
func (h *SupabaseHandler) AdvanceLeadSchedule(leadID string, su *dto.ScheduleUpdate) error {
	update := map[string]interface{}{
		"ai_sequence_stage":      string(su.SequenceStage),
		"ai_messages_sent_today": su.MessagesToday,
		"ai_messages_sent_total": su.MessagesTotal,
		"ai_counter_date":        su.CounterDate,
	}
	if su.NextSendAt != nil {
		update["next_ai_send_at"] = su.NextSendAt.UTC().Format(time.RFC3339)
	} else {
		update["next_ai_send_at"] = nil
	}

	_, _, err := h.client.From(tableLeads).Update(update, "", "").Eq("id", leadID).Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to advance lead schedule %s: %v", leadID, err)
		return fmt.Errorf("failed to advance lead schedule: %w", err)
	}

	return nil
}

// MarkLeadReplied stamps the lead's last reply time
func (h *SupabaseHandler) MarkLeadReplied(leadID string, at time.Time) error {
	update := map[string]interface{}{
		"last_reply_at": at.UTC().Format(time.RFC3339),
	}

	_, _, err := h.client.From(tableLeads).Update(update, "", "").Eq("id", leadID).Execute()
	if err != nil {
		return fmt.Errorf("failed to mark lead replied: %w", err)
	}

	return nil
}

// UpdateLeadScore writes a lead's temperature and priority bucket
func (h *SupabaseHandler) UpdateLeadScore(leadID string, temperature int, priority dto.LeadPriority) error {
	update := map[string]interface{}{
		"ai_temperature": temperature,
		"ai_priority":    string(priority),
	}

	_, _, err := h.client.From(tableLeads).Update(update, "", "").Eq("id", leadID).Execute()
	if err != nil {
		return fmt.Errorf("failed to update lead score: %w", err)
	}

	return nil
}

// GetActiveLeads returns leads created or replying within the window, newest
// first, for the periodic rescore pass
func (h *SupabaseHandler) GetActiveLeads(since time.Time, limit int) ([]dto.Lead, error) {
	sinceStr := since.UTC().Format(time.RFC3339)

	data, _, err := h.client.From(tableLeads).
		Select("*", "exact", false).
		Or(fmt.Sprintf("created_at.gte.%s,last_reply_at.gte.%s", sinceStr, sinceStr), "").
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query active leads: %w", err)
	}

	var leads []dto.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		return nil, fmt.Errorf("failed to parse active leads response: %w", err)
	}

	return leads, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// InsertMessage appends one message to the conversation log and returns the
// generated ID
func (h *SupabaseHandler) InsertMessage(msg *dto.Message) (string, error) {
	insertData := map[string]interface{}{
		"lead_id":      msg.LeadID,
		"body":         msg.Body,
		"direction":    string(msg.Direction),
		"ai_generated": msg.AIGenerated,
		"sent_at":      msg.SentAt.UTC().Format(time.RFC3339),
	}
	if msg.Stage != "" {
		insertData["template_stage"] = string(msg.Stage)
	}

	data, _, err := h.client.From(tableMessages).Insert(insertData, false, "", "", "").Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to insert message: %v", err)
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	var inserted []map[string]interface{}
	if err := json.Unmarshal(data, &inserted); err != nil {
		return "", fmt.Errorf("failed to parse message insert response: %w", err)
	}

	if len(inserted) == 0 {
		return "", fmt.Errorf("no message was inserted")
	}

	messageID, ok := inserted[0]["id"].(string)
	if !ok {
		return "", fmt.Errorf("failed to get message ID from response")
	}

	return messageID, nil
}

// GetRecentMessages returns a lead's most recent messages in chronological
// order (oldest first), capped at limit
func (h *SupabaseHandler) GetRecentMessages(leadID string, limit int) ([]dto.Message, error) {
	data, _, err := h.client.From(tableMessages).
		Select("*", "exact", false).
		Eq("lead_id", leadID).
		Order("sent_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var messages []dto.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages response: %w", err)
	}

	// Fetched newest-first for the limit; callers want reading order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// GetLastOutboundMessage returns the lead's most recent outbound message, or
// nil when none exists
func (h *SupabaseHandler) GetLastOutboundMessage(leadID string) (*dto.Message, error) {
	data, _, err := h.client.From(tableMessages).
		Select("*", "exact", false).
		Eq("lead_id", leadID).
		Eq("direction", string(dto.DirectionOut)).
		Order("sent_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query last outbound message: %w", err)
	}

	var messages []dto.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse message response: %w", err)
	}

	if len(messages) == 0 {
		return nil, nil
	}

	return &messages[0], nil
}

// GetMessagesSince returns the full message log from the cutoff onward, used
// by the analytics backfill
func (h *SupabaseHandler) GetMessagesSince(since time.Time) ([]dto.Message, error) {
	data, _, err := h.client.From(tableMessages).
		Select("*", "exact", false).
		Gte("sent_at", since.UTC().Format(time.RFC3339)).
		Order("sent_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query message history: %w", err)
	}

	var messages []dto.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse message history response: %w", err)
	}

	return messages, nil
}

// ---------------------------------------------------------------------------
// Timing analytics
// ---------------------------------------------------------------------------

// RecordSend increments the send counter for one stage/hour/weekday bucket,
// creating the bucket on first use
func (h *SupabaseHandler) RecordSend(stage dto.SequenceStage, hour, weekday int) error {
	bucket, err := h.getTimingBucket(stage, hour, weekday)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if bucket == nil {
		insertData := map[string]interface{}{
			"template_stage":  string(stage),
			"hour_of_day":     hour,
			"day_of_week":     weekday,
			"total_sent":      1,
			"total_responses": 0,
			"response_rate":   0.0,
			"updated_at":      now,
		}
		if _, _, err := h.client.From(tableAnalytics).Insert(insertData, false, "", "", "").Execute(); err != nil {
			return fmt.Errorf("failed to create timing bucket: %w", err)
		}
		return nil
	}

	totalSent := bucket.TotalSent + 1
	update := map[string]interface{}{
		"total_sent":    totalSent,
		"response_rate": float64(bucket.TotalResponses) / float64(totalSent),
		"updated_at":    now,
	}

	if _, _, err := h.client.From(tableAnalytics).Update(update, "", "").Eq("id", bucket.ID).Execute(); err != nil {
		return fmt.Errorf("failed to update timing bucket: %w", err)
	}

	return nil
}

// RecordResponse attributes one inbound reply to a send bucket: bumps the
// response counter, folds the response delay into the running mean, and
// recomputes the rate
func (h *SupabaseHandler) RecordResponse(stage dto.SequenceStage, hour, weekday int, responseHours float64) error {
	bucket, err := h.getTimingBucket(stage, hour, weekday)
	if err != nil {
		return err
	}
	if bucket == nil {
		// The send itself was never recorded; attribute both sides
		insertData := map[string]interface{}{
			"template_stage":          string(stage),
			"hour_of_day":             hour,
			"day_of_week":             weekday,
			"total_sent":              1,
			"total_responses":         1,
			"response_rate":           1.0,
			"avg_response_time_hours": responseHours,
			"updated_at":              time.Now().UTC().Format(time.RFC3339),
		}
		if _, _, err := h.client.From(tableAnalytics).Insert(insertData, false, "", "", "").Execute(); err != nil {
			return fmt.Errorf("failed to create timing bucket: %w", err)
		}
		return nil
	}

	totalSent := bucket.TotalSent
	totalResponses := bucket.TotalResponses + 1
	if totalResponses > totalSent {
		// Responses can never outnumber sends; backfill the missing send
		totalSent = totalResponses
	}

	avg := (bucket.AvgResponseTimeHours*float64(bucket.TotalResponses) + responseHours) / float64(totalResponses)

	update := map[string]interface{}{
		"total_sent":              totalSent,
		"total_responses":         totalResponses,
		"response_rate":           float64(totalResponses) / float64(totalSent),
		"avg_response_time_hours": avg,
		"updated_at":              time.Now().UTC().Format(time.RFC3339),
	}

	if _, _, err := h.client.From(tableAnalytics).Update(update, "", "").Eq("id", bucket.ID).Execute(); err != nil {
		return fmt.Errorf("failed to update timing bucket: %w", err)
	}

	return nil
}

func (h *SupabaseHandler) getTimingBucket(stage dto.SequenceStage, hour, weekday int) (*dto.TimingBucket, error) {
	data, _, err := h.client.From(tableAnalytics).
		Select("*", "exact", false).
		Eq("template_stage", string(stage)).
		Eq("hour_of_day", fmt.Sprintf("%d", hour)).
		Eq("day_of_week", fmt.Sprintf("%d", weekday)).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query timing bucket: %w", err)
	}

	var buckets []dto.TimingBucket
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("failed to parse timing bucket response: %w", err)
	}

	if len(buckets) == 0 {
		return nil, nil
	}

	return &buckets[0], nil
}

// GetTimingBuckets loads the full analytics dataset for a learning pass
func (h *SupabaseHandler) GetTimingBuckets() ([]dto.TimingBucket, error) {
	data, _, err := h.client.From(tableAnalytics).Select("*", "exact", false).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query timing buckets: %w", err)
	}

	var buckets []dto.TimingBucket
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("failed to parse timing buckets response: %w", err)
	}

	return buckets, nil
}

// ReplaceTimingBuckets swaps the analytics dataset for a rebuilt one. Used by
// the backfill; not atomic, so a learning pass racing the backfill may see a
// partial dataset for one cycle.
func (h *SupabaseHandler) ReplaceTimingBuckets(buckets []dto.TimingBucket) error {
	// hour_of_day >= 0 matches every row; PostgREST refuses an unfiltered delete
	if _, _, err := h.client.From(tableAnalytics).Delete("", "").Gte("hour_of_day", "0").Execute(); err != nil {
		return fmt.Errorf("failed to clear timing buckets: %w", err)
	}

	if len(buckets) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(buckets))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, b := range buckets {
		rows = append(rows, map[string]interface{}{
			"template_stage":          string(b.TemplateStage),
			"hour_of_day":             b.HourOfDay,
			"day_of_week":             b.DayOfWeek,
			"total_sent":              b.TotalSent,
			"total_responses":         b.TotalResponses,
			"response_rate":           b.ResponseRate,
			"avg_response_time_hours": b.AvgResponseTimeHours,
			"updated_at":              now,
		})
	}

	if _, _, err := h.client.From(tableAnalytics).Insert(rows, false, "", "", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert rebuilt timing buckets: %w", err)
	}

	log.Printf("[SupabaseHandler] Timing buckets replaced: %d rows", len(rows))
	return nil
}

// GetOptimalTimings loads the learned recommendations keyed by stage
func (h *SupabaseHandler) GetOptimalTimings() (map[dto.SequenceStage]dto.OptimalTiming, error) {
	data, _, err := h.client.From(tableTiming).Select("*", "exact", false).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query optimal timings: %w", err)
	}

	var rows []dto.OptimalTiming
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse optimal timings response: %w", err)
	}

	timings := make(map[dto.SequenceStage]dto.OptimalTiming, len(rows))
	for _, row := range rows {
		timings[row.TemplateStage] = row
	}

	return timings, nil
}

// UpsertOptimalTiming writes one stage's recommendation, replacing any
// previous row for the stage
func (h *SupabaseHandler) UpsertOptimalTiming(rec *dto.OptimalTiming) error {
	row := map[string]interface{}{
		"template_stage":               string(rec.TemplateStage),
		"recommended_hour":             rec.RecommendedHour,
		"recommended_day_offset_hours": rec.RecommendedDayOffsetHrs,
		"confidence_score":             rec.ConfidenceScore,
		"sample_size":                  rec.SampleSize,
		"updated_at":                   time.Now().UTC().Format(time.RFC3339),
	}

	_, _, err := h.client.From(tableTiming).Insert(row, true, "template_stage", "", "").Execute()
	if err != nil {
		log.Printf("[SupabaseHandler] Failed to upsert optimal timing for %s: %v", rec.TemplateStage, err)
		return fmt.Errorf("failed to upsert optimal timing: %w", err)
	}

	return nil
}
