package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendance-notifier/internal/domain"
)

// DefaultRetentionDays is how long terminal records are kept.
const DefaultRetentionDays = 30

const cleanupPage = 100

// CleanupReport summarises one Cleanup run.
type CleanupReport struct {
	Cutoff   time.Time                         `json:"cutoff"`
	Deleted  int                               `json:"deleted"`
	Archived int                               `json:"archived"`
	ByStatus map[domain.NotificationStatus]int `json:"by_status"`
}

// Cleanup deletes terminal records processed before now - retentionDays. Delivery
// logs are untouched. With an archive configured each page is stored first and
// a failed upload leaves that page and the rest of its status in place.
func (p *Pipeline) Cleanup(ctx context.Context, retentionDays int) (CleanupReport, error) {
	if retentionDays <= 0 {
		return CleanupReport{}, fmt.Errorf("retention must be at least one day: %w", domain.ErrBadRequest)
	}
	now := p.now()
	report := CleanupReport{
		Cutoff:   now.AddDate(0, 0, -retentionDays),
		ByStatus: make(map[domain.NotificationStatus]int, len(domain.TerminalStatuses)),
	}

	var errs []error
	for _, status := range domain.TerminalStatuses {
		n, archived, err := p.purge(ctx, status, report.Cutoff, now)
		report.Deleted += n
		report.Archived += archived
		report.ByStatus[status] = n
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", status, err))
		}
	}
	p.metrics.CleanupDeleted.Add(float64(report.Deleted))

	p.logger.Info().
		Time("cutoff", report.Cutoff).
		Int("deleted", report.Deleted).
		Int("archived", report.Archived).
		Msg("cleanup finished")
	return report, errors.Join(errs...)
}

func (p *Pipeline) purge(ctx context.Context, status domain.NotificationStatus, cutoff, now time.Time) (deleted, archived int, err error) {
	cursor := ""
	for {
		page, next, err := p.store.ListTerminalBefore(ctx, status, cutoff, cleanupPage, cursor)
		if err != nil {
			return deleted, archived, err
		}
		if len(page) > 0 {
			if p.archive != nil {
				if _, err := p.archive.Store(ctx, status, now, page); err != nil {
					return deleted, archived, fmt.Errorf("archive: %w", err)
				}
				archived += len(page)
			}
			ids := make([]string, len(page))
			for i, n := range page {
				ids[i] = n.NotificationID
			}
			n, err := p.store.DeleteMany(ctx, ids)
			deleted += n
			if err != nil {
				return deleted, archived, err
			}
		}
		if next == "" {
			return deleted, archived, nil
		}
		cursor = next
	}
}
