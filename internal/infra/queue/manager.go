// Package queue implements the redis-backed asynchronous job queue: a
// waiting list feeding a worker pool, with per-job state hashes, retry
// with exponential backoff, and stalled-job recovery on startup.
package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"document-ai-pipeline/internal/config"
	"document-ai-pipeline/internal/domain/model"
	"document-ai-pipeline/internal/infra/metrics"
	"document-ai-pipeline/internal/infra/redis"
)

const (
	jobKeyPrefix   = "docq:job:"
	waitingListKey = "docq:waiting"
	stateSetPrefix = "docq:state:"

	popTimeout = time.Second
)

// Processor is the part of the document pipeline the queue drives.
type Processor interface {
	ProcessFile(ctx context.Context, filePath string, opts model.ProcessOptions) (*model.DocumentRecord, error)
	ProcessBuffer(ctx context.Context, buf []byte, filename string, opts model.ProcessOptions) (*model.DocumentRecord, error)
}

// Manager owns the queue lifecycle. Jobs are transient redis state; the
// processed document record is the durable output.
type Manager struct {
	rdb  redis.RedisClient
	proc Processor
	cfg  config.ProcessingConfig
	log  *zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewManager(rdb redis.RedisClient, proc Processor, cfg config.ProcessingConfig, log *zerolog.Logger) *Manager {
	return &Manager{rdb: rdb, proc: proc, cfg: cfg, log: log}
}

// AddFileJob enqueues processing of a file on disk and returns the job id.
func (m *Manager) AddFileJob(ctx context.Context, filePath string, opts model.ProcessOptions) (string, error) {
	job := &model.Job{
		ID:       uuid.NewString(),
		Type:     model.JobTypeFile,
		FilePath: filePath,
		Options:  opts,
	}
	return m.enqueue(ctx, job)
}

// AddBufferJob enqueues processing of an in-memory payload.
func (m *Manager) AddBufferJob(ctx context.Context, buf []byte, filename string, opts model.ProcessOptions) (string, error) {
	job := &model.Job{
		ID:       uuid.NewString(),
		Type:     model.JobTypeBuffer,
		Payload:  buf,
		Filename: filename,
		Options:  opts,
	}
	return m.enqueue(ctx, job)
}

func (m *Manager) enqueue(ctx context.Context, job *model.Job) (string, error) {
	now := time.Now().UTC()
	job.State = model.JobWaiting
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := m.writeJob(ctx, job); err != nil {
		return "", err
	}
	if err := m.rdb.SAdd(ctx, stateSetKey(model.JobWaiting), job.ID); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	if err := m.rdb.LPush(ctx, waitingListKey, job.ID); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	metrics.IncJob(string(model.JobWaiting))
	m.log.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("job enqueued")
	return job.ID, nil
}

// Start recovers jobs left active by a previous run, then launches the
// worker pool. It returns immediately; Stop drains the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("queue manager already started")
	}

	if err := m.recoverStalled(ctx); err != nil {
		m.log.Warn().Err(err).Msg("stalled job recovery incomplete")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.started = true

	workers := m.cfg.Concurrency
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(runCtx, i)
	}
	m.log.Info().Int("workers", workers).Msg("queue workers started")
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to settle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.started = false
	m.mu.Unlock()

	m.wg.Wait()
	m.log.Info().Msg("queue workers stopped")
}

func (m *Manager) workerLoop(ctx context.Context, id int) {
	defer m.wg.Done()
	m.log.Debug().Int("worker", id).Msg("queue worker running")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		vals, err := m.rdb.BRPop(ctx, popTimeout, waitingListKey)
		if err != nil || len(vals) < 2 {
			continue // timeout or transient error; ctx check at loop top
		}
		m.runJob(ctx, vals[1])
	}
}

func (m *Manager) runJob(ctx context.Context, jobID string) {
	job, err := m.readJob(ctx, jobID)
	if err != nil || job == nil {
		m.log.Error().Err(err).Str("job_id", jobID).Msg("popped job has no record")
		return
	}

	job.Attempts++
	m.transition(ctx, job, model.JobActive)

	jobCtx, cancel := context.WithTimeout(ctx, m.cfg.JobTimeout)
	defer cancel()

	var rec *model.DocumentRecord
	switch job.Type {
	case model.JobTypeBuffer:
		rec, err = m.proc.ProcessBuffer(jobCtx, job.Payload, job.Filename, job.Options)
	default:
		rec, err = m.proc.ProcessFile(jobCtx, job.FilePath, job.Options)
	}

	if err == nil {
		job.Result = rec
		job.FailedReason = ""
		m.transition(ctx, job, model.JobCompleted)
		m.log.Info().Str("job_id", job.ID).Int("attempts", job.Attempts).Msg("job completed")
		return
	}

	job.FailedReason = err.Error()
	if job.Attempts < m.cfg.JobAttempts {
		m.retryLater(ctx, job)
		return
	}
	m.transition(ctx, job, model.JobFailed)
	m.log.Error().Str("job_id", job.ID).Int("attempts", job.Attempts).Str("reason", job.FailedReason).Msg("job failed")
}

// retryLater re-enqueues the job after an exponential backoff delay,
// doubling from the configured base per prior attempt.
func (m *Manager) retryLater(ctx context.Context, job *model.Job) {
	delay := m.cfg.BackoffBase << (job.Attempts - 1)
	metrics.IncJobRetry()
	m.transition(ctx, job, model.JobWaiting)
	m.log.Warn().Str("job_id", job.ID).Int("attempt", job.Attempts).Dur("backoff", delay).
		Str("reason", job.FailedReason).Msg("job attempt failed, retrying")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-time.After(delay):
			if err := m.rdb.LPush(context.Background(), waitingListKey, job.ID); err != nil {
				m.log.Error().Err(err).Str("job_id", job.ID).Msg("retry enqueue failed")
			}
		case <-ctx.Done():
			// shutdown: leave the job in waiting; startup recovery or a
			// later pop will pick it up
			_ = m.rdb.LPush(context.Background(), waitingListKey, job.ID)
		}
	}()
}

// transition moves a job between state sets and persists the hash.
func (m *Manager) transition(ctx context.Context, job *model.Job, to model.JobState) {
	from := job.State
	job.State = to
	job.UpdatedAt = time.Now().UTC()

	if err := m.writeJob(ctx, job); err != nil {
		m.log.Error().Err(err).Str("job_id", job.ID).Msg("job state write failed")
	}
	if from != "" && from != to {
		_ = m.rdb.SRem(ctx, stateSetKey(from), job.ID)
	}
	_ = m.rdb.SAdd(ctx, stateSetKey(to), job.ID)
	metrics.IncJob(string(to))
}

// GetJobStatus reports the polling view for a job id. Unknown ids yield a
// "not_found" status rather than an error.
func (m *Manager) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatus, error) {
	job, err := m.readJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return &model.JobStatus{ID: jobID, Status: "not_found"}, nil
	}
	status := &model.JobStatus{
		ID:           job.ID,
		Status:       string(job.State),
		Result:       job.Result,
		FailedReason: job.FailedReason,
	}
	switch job.State {
	case model.JobActive:
		status.Progress = 50
	case model.JobCompleted, model.JobFailed:
		status.Progress = 100
	}
	return status, nil
}

// GetQueueStats returns the per-state census from the state sets.
func (m *Manager) GetQueueStats(ctx context.Context) (*model.QueueStats, error) {
	stats := &model.QueueStats{}
	for _, pair := range []struct {
		state model.JobState
		dst   *int
	}{
		{model.JobWaiting, &stats.Waiting},
		{model.JobActive, &stats.Active},
		{model.JobCompleted, &stats.Completed},
		{model.JobFailed, &stats.Failed},
		{model.JobStalled, &stats.Stalled},
	} {
		n, err := m.rdb.SCard(ctx, stateSetKey(pair.state))
		if err != nil {
			return nil, fmt.Errorf("queue stats: %w", err)
		}
		*pair.dst = int(n)
	}
	stats.Total = stats.Waiting + stats.Active + stats.Completed + stats.Failed + stats.Stalled
	return stats, nil
}

// recoverStalled requeues jobs a previous run left in the active set.
// They pass through stalled so the census records the interruption.
func (m *Manager) recoverStalled(ctx context.Context) error {
	ids, err := m.rdb.SMembers(ctx, stateSetKey(model.JobActive))
	if err != nil {
		return err
	}
	for _, id := range ids {
		job, err := m.readJob(ctx, id)
		if err != nil || job == nil {
			_ = m.rdb.SRem(ctx, stateSetKey(model.JobActive), id)
			continue
		}
		m.transition(ctx, job, model.JobStalled)
		m.transition(ctx, job, model.JobWaiting)
		if err := m.rdb.LPush(ctx, waitingListKey, job.ID); err != nil {
			return err
		}
		m.log.Warn().Str("job_id", job.ID).Msg("recovered stalled job")
	}
	return nil
}

func stateSetKey(state model.JobState) string { return stateSetPrefix + string(state) }

func jobKey(jobID string) string { return jobKeyPrefix + jobID }

func (m *Manager) writeJob(ctx context.Context, job *model.Job) error {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal job options %s: %w", job.ID, err)
	}
	fields := []interface{}{
		"id", job.ID,
		"type", string(job.Type),
		"file_path", job.FilePath,
		"filename", job.Filename,
		"payload", base64.StdEncoding.EncodeToString(job.Payload),
		"options", string(optionsJSON),
		"state", string(job.State),
		"attempts", strconv.Itoa(job.Attempts),
		"failed_reason", job.FailedReason,
		"created_at", job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at", job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		resultJSON, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("marshal job result %s: %w", job.ID, err)
		}
		fields = append(fields, "result", string(resultJSON))
	}
	if err := m.rdb.HSet(ctx, jobKey(job.ID), fields...); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

// readJob returns nil,nil when the hash does not exist.
func (m *Manager) readJob(ctx context.Context, jobID string) (*model.Job, error) {
	h, err := m.rdb.HGetAll(ctx, jobKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", jobID, err)
	}
	if len(h) == 0 {
		return nil, nil
	}

	job := &model.Job{
		ID:           h["id"],
		Type:         model.JobType(h["type"]),
		FilePath:     h["file_path"],
		Filename:     h["filename"],
		State:        model.JobState(h["state"]),
		FailedReason: h["failed_reason"],
	}
	if h["payload"] != "" {
		payload, err := base64.StdEncoding.DecodeString(h["payload"])
		if err != nil {
			return nil, fmt.Errorf("decode job payload %s: %w", jobID, err)
		}
		job.Payload = payload
	}
	if h["options"] != "" {
		if err := json.Unmarshal([]byte(h["options"]), &job.Options); err != nil {
			return nil, fmt.Errorf("decode job options %s: %w", jobID, err)
		}
	}
	if h["result"] != "" {
		var rec model.DocumentRecord
		if err := json.Unmarshal([]byte(h["result"]), &rec); err != nil {
			return nil, fmt.Errorf("decode job result %s: %w", jobID, err)
		}
		job.Result = &rec
	}
	job.Attempts, _ = strconv.Atoi(h["attempts"])
	if t, err := time.Parse(time.RFC3339Nano, h["created_at"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, h["updated_at"]); err == nil {
		job.UpdatedAt = t
	}
	return job, nil
}
