// File: internal/usecase/generation_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
	"github.com/iudd/soradeno/internal/domain/ports/repository"
	"github.com/iudd/soradeno/internal/infra/logging"
	"github.com/iudd/soradeno/internal/infra/metrics"
)

// Compile-time check
var _ GenerationUseCase = (*generationUC)(nil)

// Result is the terminal outcome of one run.
type Result struct {
	Task    *model.Task
	Results model.ResultSet
	Skipped bool
}

// BatchResult aggregates a sequential batch.
type BatchResult struct {
	Total        int
	SuccessCount int
	FailCount    int
}

type GenerationUseCase interface {
	Configured() bool
	ListAll(ctx context.Context, limit int) ([]*model.Task, error)
	ListPending(ctx context.Context, limit int) ([]*model.Task, error)
	Get(ctx context.Context, recordID string) (*model.Task, error)

	// Run drives one task through the status lifecycle, relaying progress
	// through sink. Fails fast with domain.ErrBusy while another run holds
	// the gate.
	Run(ctx context.Context, recordID string, sink adapter.EventSink) (*Result, error)

	// RunBatch executes pending tasks sequentially. One task's failure never
	// aborts the batch.
	RunBatch(ctx context.Context, limit int, sink adapter.EventSink) (*BatchResult, error)
}

type generationUC struct {
	store repository.RecordStore
	gen   adapter.Generator
	gate  *Gate
	delay time.Duration // pause between batch tasks
	log   *zerolog.Logger
}

func NewGenerationUseCase(store repository.RecordStore, gen adapter.Generator, delay time.Duration, logger *zerolog.Logger) *generationUC {
	return &generationUC{
		store: store,
		gen:   gen,
		gate:  NewGate(),
		delay: delay,
		log:   logger,
	}
}

func (u *generationUC) Configured() bool { return u.store.Configured() }

func (u *generationUC) ListAll(ctx context.Context, limit int) ([]*model.Task, error) {
	if !u.store.Configured() {
		return nil, domain.ErrNotConfigured
	}
	return u.store.ListAll(ctx, limit)
}

func (u *generationUC) ListPending(ctx context.Context, limit int) ([]*model.Task, error) {
	if !u.store.Configured() {
		return nil, domain.ErrNotConfigured
	}
	return u.store.ListPending(ctx, limit)
}

func (u *generationUC) Get(ctx context.Context, recordID string) (*model.Task, error) {
	if !u.store.Configured() {
		return nil, domain.ErrNotConfigured
	}
	return u.store.Get(ctx, recordID)
}

func (u *generationUC) Run(ctx context.Context, recordID string, sink adapter.EventSink) (*Result, error) {
	if !u.store.Configured() {
		return nil, domain.ErrNotConfigured
	}
	if !u.gate.TryAcquire() {
		metrics.IncBusy()
		return nil, domain.ErrBusy
	}
	defer u.gate.Release()

	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithRecordID(ctx, recordID)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "GenerationUC.Run")()

	return u.runLocked(ctx, recordID, sink, log)
}

// runLocked holds the gate for its whole duration. Status writes are
// strictly ordered: in-progress precedes the upstream call, the terminal
// write follows it.
func (u *generationUC) runLocked(ctx context.Context, recordID string, sink adapter.EventSink, log *zerolog.Logger) (*Result, error) {
	task, err := u.store.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	sink.Send(adapter.Event{Type: adapter.EventLog, Message: "任务加载成功: " + domain.Truncate(task.Prompt, 50)})

	// Completed tasks are never regenerated by a default run; report the
	// stored URLs and write nothing.
	if task.Completed() {
		log.Info().Msg("task already completed, skipping")
		metrics.IncRun("skipped")
		return &Result{Task: task, Results: task.Results, Skipped: true}, nil
	}

	if strings.TrimSpace(task.Prompt) == "" {
		return nil, u.fail(ctx, task, domain.ErrInvalidTask, sink, log)
	}

	ref, err := u.resolveReference(ctx, task)
	if err != nil {
		return nil, u.fail(ctx, task, fmt.Errorf("resolve reference image: %w", err), sink, log)
	}

	if err := u.store.MarkInProgress(ctx, recordID); err != nil {
		return nil, err
	}
	task.Status = model.TaskStatusInProgress
	sink.Send(adapter.Event{Type: adapter.EventLog, Message: "开始生成: " + task.Model})

	start := time.Now()
	results, err := u.gen.Invoke(ctx, adapter.GenerationRequest{
		Prompt:         task.Prompt,
		Model:          task.Model,
		ReferenceImage: ref,
	}, sink)
	metrics.ObserveRun(task.Model, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, u.fail(ctx, task, err, sink, log)
	}

	if err := u.store.MarkSuccess(ctx, recordID, results); err != nil {
		return nil, u.fail(ctx, task, fmt.Errorf("write success status: %w", err), sink, log)
	}
	task.Status = model.TaskStatusSuccess
	task.IsGenerated = true
	task.Results = results

	metrics.IncRun("success")
	log.Info().
		Str("primary_url", results.PrimaryURL).
		Str("watermark_free_url", results.WatermarkFreeURL).
		Str("mirror_url", results.MirrorURL).
		Dur("duration", time.Since(start)).
		Msg("generation succeeded")
	sink.Send(adapter.Event{Type: adapter.EventLog, Message: "生成成功，已写回记录"})
	return &Result{Task: task, Results: results}, nil
}

// resolveReference turns a stored reference-image value into a fetchable
// URL. File tokens go through the store's drive API; URLs pass through.
func (u *generationUC) resolveReference(ctx context.Context, task *model.Task) (string, error) {
	ref := task.ReferenceImage
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	return u.store.AttachmentURL(ctx, ref)
}

// fail converts any run error into a failed status write. The write itself
// is best-effort: a failure to record the failure is logged, never thrown.
func (u *generationUC) fail(ctx context.Context, task *model.Task, runErr error, sink adapter.EventSink, log *zerolog.Logger) error {
	log.Error().Err(runErr).Msg("generation run failed")
	metrics.IncRun("failed")
	if err := u.store.MarkFailed(ctx, task.RecordID, runErr.Error()); err != nil {
		log.Error().Err(err).Msg("could not write failed status")
	}
	sink.Send(adapter.Event{Type: adapter.EventLog, Message: "生成失败: " + domain.Truncate(runErr.Error(), 200)})
	return runErr
}

func (u *generationUC) RunBatch(ctx context.Context, limit int, sink adapter.EventSink) (*BatchResult, error) {
	if !u.store.Configured() {
		return nil, domain.ErrNotConfigured
	}
	tasks, err := u.store.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{Total: len(tasks)}
	sink.Send(adapter.Event{Type: adapter.EventLog, Message: fmt.Sprintf("批量生成 %d 个任务", len(tasks))})

	for i, task := range tasks {
		sink.Send(adapter.Event{Type: adapter.EventLog,
			Message: fmt.Sprintf("[%d/%d] 任务 %s", i+1, len(tasks), task.RecordID)})

		if _, err := u.Run(ctx, task.RecordID, sink); err != nil {
			res.FailCount++
			metrics.IncBatchTask("failed")
			if ctx.Err() != nil {
				// Caller went away; stop the batch.
				return res, ctx.Err()
			}
		} else {
			res.SuccessCount++
			metrics.IncBatchTask("success")
		}

		if i < len(tasks)-1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(u.delay):
			}
		}
	}

	u.log.Info().Int("total", res.Total).Int("success", res.SuccessCount).Int("failed", res.FailCount).
		Msg("batch finished")
	return res, nil
}
