package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
)

// auditRepository is append-only; entries are never updated or deleted.
type auditRepository struct {
	db *auditTable
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db.audit}
}

func matches(entry audit.Entry, filter *audit.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}
	if filter.Search != "" &&
		!(containsFold(entry.Action, filter.Search) || containsFold(entry.Detail, filter.Search)) {
		return false
	}
	return true
}

func (repo *auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	entry.ID = uuid.New().String()
	repo.db.table = append(repo.db.table, entry)
	return entry, nil
}

func (repo *auditRepository) QueryEntries(ctx context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering) ([]audit.Entry, error) {
	repo.db.RLock()
	entries := make([]audit.Entry, 0, len(repo.db.table))
	for _, entry := range repo.db.table {
		if matches(entry, filter) {
			entries = append(entries, entry)
		}
	}
	repo.db.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })

	if filter != nil {
		if filter.Offset >= len(entries) {
			return []audit.Entry{}, nil
		}
		entries = entries[filter.Offset:]
		if filter.Limit > 0 && filter.Limit < len(entries) {
			entries = entries[:filter.Limit]
		}
	}
	return entries, nil
}

func (repo *auditRepository) CountEntries(ctx context.Context, filter *audit.QueryFilter) (audit.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats audit.Stats
	for _, entry := range repo.db.table {
		if !matches(entry, filter) {
			continue
		}
		stats.Total++
		switch entry.Status {
		case audit.StatusSuccess:
			stats.Success++
		case audit.StatusWarning:
			stats.Warnings++
		case audit.StatusError:
			stats.Errors++
		}
	}
	return stats, nil
}
