package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/domain"
	"github.com/attendance-notifier/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Report summarises one ProcessDue run.
type Report struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Retried  int `json:"retried"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
	// Contended is set when another sweep held the lock and nothing was done.
	Contended bool `json:"contended,omitempty"`
}

func (r *Report) add(o Outcome) {
	switch o {
	case OutcomeSent:
		r.Sent++
	case OutcomeRetried:
		r.Retried++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// Deps are the collaborators of a Pipeline. Lock, Archive and Limiter are optional.
type Deps struct {
	Store     NotificationStore
	Logs      LogWriter
	Users     UserDirectory
	Transport Transport
	Lock      Locker
	Archive   Archiver
	Limiter   *rate.Limiter
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Config    config.Delivery
	Now       func() time.Time
}

// Pipeline is the due-notification sweep plus the retention cleanup.
type Pipeline struct {
	selector    *Selector
	batcher     *Batcher
	processor   *TicketProcessor
	store       NotificationStore
	users       UserDirectory
	transport   Transport
	lock        Locker
	archive     Archiver
	limiter     *rate.Limiter
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	concurrency int
	now         func() time.Time
}

func NewPipeline(d Deps) *Pipeline {
	if d.Lock == nil {
		d.Lock = &LocalLock{}
	}
	if d.Limiter == nil {
		d.Limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New("notifier", nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	duePage, retryPage := d.Config.DuePageSize, d.Config.RetryPage
	if duePage <= 0 {
		duePage = 100
	}
	if retryPage <= 0 {
		retryPage = duePage
	}
	concurrency := d.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	policy := RetryPolicy{MaxRetries: d.Config.MaxRetries, Backoff: d.Config.RetryBackoff}
	return &Pipeline{
		selector:    NewSelector(d.Store, duePage, retryPage),
		batcher:     NewBatcher(BatchSizeFor(d.Config.BatchSize, d.Transport.BatchLimit()), d.Transport.ValidToken),
		processor:   NewTicketProcessor(d.Store, d.Logs, policy, d.Metrics, d.Logger),
		store:       d.Store,
		users:       d.Users,
		transport:   d.Transport,
		lock:        d.Lock,
		archive:     d.Archive,
		limiter:     d.Limiter,
		metrics:     d.Metrics,
		logger:      d.Logger,
		concurrency: concurrency,
		now:         d.Now,
	}
}

// NewPushLimiter paces transport calls to perSecond messages. The burst covers one full batch.
func NewPushLimiter(perSecond, batchSize int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := perSecond
	if batchSize > burst {
		burst = batchSize
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// ProcessDue runs one sweep over every currently due record. It is safe to call
// repeatedly or concurrently. Records whose status update failed stay pending
// and are picked up again by a later sweep.
func (p *Pipeline) ProcessDue(ctx context.Context) (Report, error) {
	var report Report
	unlock, ok, err := p.lock.TryLock(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep lock: %w", err)
	}
	if !ok {
		p.logger.Info().Msg("sweep already running elsewhere, skipping")
		report.Contended = true
		return report, nil
	}
	defer unlock()

	timer := prometheus.NewTimer(p.metrics.SweepDuration)
	defer timer.ObserveDuration()

	now := p.now()
	records, err := p.selector.Select(ctx, now)
	if err != nil {
		return report, err
	}
	report.Selected = len(records)
	p.metrics.SweepSelected.Set(float64(len(records)))
	if len(records) == 0 {
		p.logger.Debug().Msg("no notifications due")
		return report, nil
	}

	users, err := p.users.GetMany(ctx, userIDs(records))
	if err != nil {
		return report, fmt.Errorf("resolve recipients: %w", err)
	}
	chunks, rejected := p.batcher.Build(records, users)

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(o Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			report.Errors++
			return
		}
		report.add(o)
	}

	for _, r := range rejected {
		record(p.reject(ctx, r, now))
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, chunk := range chunks {
		g.Go(func() error {
			tickets := p.send(ctx, chunk)
			for i, d := range chunk {
				record(p.processor.Apply(ctx, d, tickets[i], p.now()))
			}
			return nil
		})
	}
	_ = g.Wait()

	ev := p.logger.Info()
	if len(errs) > 0 {
		ev = p.logger.Error().Err(errors.Join(errs...))
	}
	ev.Int("selected", report.Selected).
		Int("sent", report.Sent).
		Int("retried", report.Retried).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("errors", report.Errors).
		Msg("sweep finished")

	if len(errs) > 0 {
		return report, fmt.Errorf("processed %d of %d notifications: %w",
			report.Selected-report.Errors, report.Selected, errors.Join(errs...))
	}
	return report, nil
}

// send calls the transport for one chunk and always returns one ticket per message.
// A transport-level failure becomes an error ticket for every message.
func (p *Pipeline) send(ctx context.Context, chunk []Delivery) []domain.PushTicket {
	msgs := messages(chunk)
	var (
		tickets []domain.PushTicket
		err     error
	)
	if err = p.limiter.WaitN(ctx, len(msgs)); err == nil {
		tickets, err = p.transport.Send(ctx, msgs)
	}
	if err == nil && len(tickets) != len(msgs) {
		err = fmt.Errorf("transport returned %d tickets for %d messages", len(tickets), len(msgs))
	}
	if err != nil {
		p.logger.Warn().Err(err).Int("batch", len(msgs)).Msg("push batch failed")
		tickets = make([]domain.PushTicket, len(msgs))
		for i := range tickets {
			tickets[i] = domain.ErrorTicket(err.Error())
		}
	}
	return tickets
}

// reject fails a record whose recipient has no usable token. Token problems are
// not transient so the retry policy is bypassed.
func (p *Pipeline) reject(ctx context.Context, r domain.ScheduledNotification, now time.Time) (Outcome, error) {
	err := p.store.MarkFailed(ctx, r.NotificationID, domain.ErrInvalidToken.Error(), now)
	if errors.Is(err, domain.ErrAlreadyHandled) {
		return OutcomeSkipped, nil
	}
	if err != nil {
		p.metrics.StorageFailures.WithLabelValues("mark_failed").Inc()
		return OutcomeFailed, fmt.Errorf("mark_failed %s: %w", r.NotificationID, err)
	}
	p.metrics.NotificationsFailed.WithLabelValues("invalid_token").Inc()
	return OutcomeFailed, nil
}

func userIDs(records []domain.ScheduledNotification) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		ids = append(ids, r.UserID)
	}
	return ids
}
