package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
)

const auditTable = "audit_log"

var auditColumns = []string{"id", "actor_id", "action", "status", "detail", "created_at"}

type auditRow struct {
	ID        string      `db:"id"`
	ActorID   string      `db:"actor_id"`
	Action    string      `db:"action"`
	Status    string      `db:"status"`
	Detail    null.String `db:"detail"`
	CreatedAt null.Time   `db:"created_at"`
}

// auditRepository is append-only; entries are never updated or deleted.
type auditRepository struct {
	db *sqlx.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *sqlx.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) unpack(row auditRow) audit.Entry {
	return audit.Entry{
		ID:        row.ID,
		ActorID:   row.ActorID,
		Action:    row.Action,
		Status:    audit.Status(row.Status),
		Detail:    row.Detail.String,
		CreatedAt: row.CreatedAt.Time,
	}
}

func (repo auditRepository) filterQuery(q sq.SelectBuilder, filter *audit.QueryFilter) sq.SelectBuilder {
	if filter == nil {
		return q
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.Expr("action ILIKE ?", val),
			sq.Expr("detail ILIKE ?", val),
		})
	}
	return q
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	entry.ID = uuid.New().String()
	qry, args, err := psql.Insert(auditTable).
		Columns(auditColumns...).
		Values(entry.ID, entry.ActorID, entry.Action, string(entry.Status),
			null.NewString(entry.Detail, entry.Detail != ""),
			null.NewTime(entry.CreatedAt.UTC(), !entry.CreatedAt.IsZero())).
		ToSql()
	if err != nil {
		return audit.Entry{}, errors.Wrap(err, "building audit entry insert")
	}
	if _, err = repo.db.ExecContext(ctx, qry, args...); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering) ([]audit.Entry, error) {
	q := repo.filterQuery(psql.Select(auditColumns...).From(auditTable), filter)

	if ordering != nil {
		q = q.OrderBy(orderBy(ordering))
	}
	if filter != nil {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	qry, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building audit entries query")
	}
	var rows []auditRow
	if err = repo.db.SelectContext(ctx, &rows, qry, args...); err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, repo.unpack(row))
	}
	return entries, nil
}

func (repo auditRepository) CountEntries(ctx context.Context, filter *audit.QueryFilter) (audit.Stats, error) {
	q := repo.filterQuery(psql.Select(
		`COUNT(*) AS "total"`,
		`COUNT(*) FILTER (WHERE status = 'success') AS "success"`,
		`COUNT(*) FILTER (WHERE status = 'warning') AS "warnings"`,
		`COUNT(*) FILTER (WHERE status = 'error') AS "errors"`,
	).From(auditTable), filter)

	qry, args, err := q.ToSql()
	if err != nil {
		return audit.Stats{}, errors.Wrap(err, "building audit entries count")
	}
	var stats audit.Stats
	if err = repo.db.GetContext(ctx, &stats, qry, args...); err != nil {
		return audit.Stats{}, errors.Wrap(err, "counting audit entries")
	}
	return stats, nil
}
