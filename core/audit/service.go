package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		// QueryEntries applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Entry.Action or Entry.Detail.
		QueryEntries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error)
		// CountEntries aggregates counts per status over the filtered set,
		// ignoring QueryFilter.Limit and QueryFilter.Offset.
		CountEntries(ctx context.Context, filter *QueryFilter) (Stats, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Record appends an entry for an administrative action attempt.
// It always succeeds from the caller's perspective: recorder failure must not
// roll back the recorded action, only be reported separately.
func (svc *Service) Record(ctx context.Context, ne NewEntry) {
	status := ne.Status
	if !status.IsValid() {
		status = StatusSuccess
	}
	entry := Entry{
		ActorID:   ne.ActorID,
		Action:    ne.Action,
		Status:    status,
		Detail:    ne.Detail,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := svc.repo.CreateEntry(ctx, entry); err != nil {
		svc.logger.Error("recording audit entry", errors.Wrap(err, "creating audit entry"))
	}
}

// Query returns the filtered, paginated entries ordered by creation time,
// along with aggregate counts computed over the whole filtered set.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, Stats, error) {
	if filter != nil {
		filter.Clean()
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}

	entries, err := svc.repo.QueryEntries(ctx, filter, ordering)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "querying audit entries")
	}
	stats, err := svc.repo.CountEntries(ctx, filter)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "counting audit entries")
	}
	return entries, stats, nil
}
