// Package sync sequences a full synchronization run: fetch every campaign
// page, then trigger and persist each record, isolating per-record
// failures so one bad campaign never aborts the batch.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/adops-io/campaign-sync/pkg/campaign"
	"github.com/adops-io/campaign-sync/pkg/store"
)

// Prometheus metrics for sync runs.
var (
	recordsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_records_processed_total",
		Help: "Total records processed by result",
	}, []string{"result"})

	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sync_runs_total",
		Help: "Total sync runs by result",
	}, []string{"result"})
)

// State is the orchestrator's lifecycle phase.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateFetching      State = "fetching"
	StateProcessing    State = "processing"
	StateCompleted     State = "completed"
	StateFatallyFailed State = "fatally_failed"
)

// Outcome is the final report of one run.
type Outcome struct {
	Success int
	Failure int
	Total   int
}

// Fetcher returns the complete remote record set. Satisfied by
// *campaign.Paginator.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]campaign.Record, error)
}

// Trigger requests a remote refresh for one record before persistence.
// Satisfied by *campaign.API.
type Trigger interface {
	TriggerSync(ctx context.Context, id string) error
}

// Sink is the persistence side of a run. Satisfied by *store.Store.
type Sink interface {
	Ping(ctx context.Context) error
	UpsertCampaign(ctx context.Context, rec campaign.Record) error
	RecordRun(ctx context.Context, run store.SyncRun) error
	Close() error
}

// Orchestrator runs one synchronization from start to finish. It owns the
// sink for the duration of Run and releases it on every exit path.
// An Orchestrator is single-use.
type Orchestrator struct {
	fetcher Fetcher
	trigger Trigger
	sink    Sink
	logger  zerolog.Logger
	state   State
}

// NewOrchestrator creates an orchestrator in the Idle state.
func NewOrchestrator(fetcher Fetcher, trigger Trigger, sink Sink, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		trigger: trigger,
		sink:    sink,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
		state:   StateIdle,
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the full sync. Per-record failures are counted and never
// abort the batch; failures while connecting or fetching are fatal and
// propagate. The sink is closed before Run returns, success or failure.
func (o *Orchestrator) Run(ctx context.Context) (Outcome, error) {
	if o.state != StateIdle {
		return Outcome{}, fmt.Errorf("orchestrator already ran (state %s)", o.state)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logger := o.logger.With().Str("run_id", runID).Logger()

	defer func() {
		if err := o.sink.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close persistence sink")
		}
	}()

	o.setState(logger, StateConnecting)
	if err := o.sink.Ping(ctx); err != nil {
		o.setState(logger, StateFatallyFailed)
		syncRunsTotal.WithLabelValues("fatal").Inc()
		return Outcome{}, fmt.Errorf("persistence sink unreachable: %w", err)
	}

	o.setState(logger, StateFetching)
	records, err := o.fetcher.FetchAll(ctx)
	if err != nil {
		o.setState(logger, StateFatallyFailed)
		syncRunsTotal.WithLabelValues("fatal").Inc()
		return Outcome{}, fmt.Errorf("fetch campaigns: %w", err)
	}

	outcome := Outcome{Total: len(records)}

	o.setState(logger, StateProcessing)
	for i, rec := range records {
		if ctx.Err() != nil {
			o.setState(logger, StateFatallyFailed)
			syncRunsTotal.WithLabelValues("fatal").Inc()
			return outcome, fmt.Errorf("run interrupted at record %d/%d: %w", i, outcome.Total, ctx.Err())
		}

		if err := o.processRecord(ctx, rec); err != nil {
			outcome.Failure++
			recordsProcessedTotal.WithLabelValues("failure").Inc()
			logger.Warn().
				Err(err).
				Str("campaign_id", rec.ID).
				Int("record", i+1).
				Msg("Record failed, continuing batch")
			continue
		}

		outcome.Success++
		recordsProcessedTotal.WithLabelValues("success").Inc()

		if (i+1)%100 == 0 {
			logger.Debug().
				Int("processed", i+1).
				Int("total", outcome.Total).
				Msg("Processing progress")
		}
	}

	run := store.SyncRun{
		ID:         runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Success:    outcome.Success,
		Failure:    outcome.Failure,
		Total:      outcome.Total,
	}
	if err := o.sink.RecordRun(ctx, run); err != nil {
		// The sync itself finished; a lost audit row is not fatal.
		logger.Warn().Err(err).Msg("Failed to record sync run")
	}

	o.setState(logger, StateCompleted)
	syncRunsTotal.WithLabelValues("completed").Inc()

	logger.Info().
		Int("success", outcome.Success).
		Int("failure", outcome.Failure).
		Int("total", outcome.Total).
		Dur("duration", time.Since(startedAt)).
		Msg("Sync run completed")

	return outcome, nil
}

// processRecord triggers the remote refresh and persists the record.
func (o *Orchestrator) processRecord(ctx context.Context, rec campaign.Record) error {
	if err := o.trigger.TriggerSync(ctx, rec.ID); err != nil {
		return fmt.Errorf("remote trigger: %w", err)
	}
	if err := o.sink.UpsertCampaign(ctx, rec); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (o *Orchestrator) setState(logger zerolog.Logger, next State) {
	logger.Debug().
		Str("from", string(o.state)).
		Str("to", string(next)).
		Msg("State transition")
	o.state = next
}
