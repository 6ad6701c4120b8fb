package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/resource"
)

const resourceTable = "resource"

var resourceColumns = []string{
	"id", "title", "description", "owner_id", "category", "file_ref", "external_link",
	"created_at", "updated_at",
}

type resourceRow struct {
	ID           string      `db:"id"`
	Title        null.String `db:"title"`
	Description  null.String `db:"description"`
	OwnerID      null.String `db:"owner_id"`
	Category     null.String `db:"category"`
	FileRef      null.String `db:"file_ref"`
	ExternalLink null.String `db:"external_link"`
	CreatedAt    null.Time   `db:"created_at"`
	UpdatedAt    null.Time   `db:"updated_at"`
}

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo resourceRepository) pack(res resource.Resource) resourceRow {
	return resourceRow{
		ID:           res.ID,
		Title:        null.NewString(res.Title, res.Title != ""),
		Description:  null.NewString(res.Description, res.Description != ""),
		OwnerID:      null.NewString(res.OwnerID, res.OwnerID != ""),
		Category:     null.NewString(res.Category, res.Category != ""),
		FileRef:      null.NewString(res.FileRef, res.FileRef != ""),
		ExternalLink: null.NewString(res.ExternalLink, res.ExternalLink != ""),
		CreatedAt:    null.NewTime(res.CreatedAt.UTC(), !res.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(res.UpdatedAt.UTC(), !res.UpdatedAt.IsZero()),
	}
}

func (repo resourceRepository) unpack(row resourceRow) resource.Resource {
	return resource.Resource{
		ID:           row.ID,
		Title:        row.Title.String,
		Description:  row.Description.String,
		OwnerID:      row.OwnerID.String,
		Category:     row.Category.String,
		FileRef:      row.FileRef.String,
		ExternalLink: row.ExternalLink.String,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to resource.ErrNotFound
func (repo resourceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return resource.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	res.ID = uuid.New().String()
	row := repo.pack(res)
	qry, args, err := psql.Insert(resourceTable).
		Columns(resourceColumns...).
		Values(row.ID, row.Title, row.Description, row.OwnerID, row.Category,
			row.FileRef, row.ExternalLink, row.CreatedAt, row.UpdatedAt).
		ToSql()
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "building resource insert")
	}
	if _, err = repo.db.ExecContext(ctx, qry, args...); err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo resourceRepository) GetResource(ctx context.Context, id string) (resource.Resource, error) {
	qry, args, err := psql.Select(resourceColumns...).From(resourceTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "building resource select")
	}
	var row resourceRow
	if err = repo.db.GetContext(ctx, &row, qry, args...); err != nil {
		return resource.Resource{}, repo.trapNoRowsErr(err, "getting resource")
	}
	return repo.unpack(row), nil
}

func (repo resourceRepository) QueryResources(ctx context.Context, filter *resource.QueryFilter, ordering []core.DBOrdering) ([]resource.Resource, error) {
	q := psql.Select(resourceColumns...).From(resourceTable)

	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q = q.Where(sq.Or{
				sq.Expr("title ILIKE ?", val),
				sq.Expr("description ILIKE ?", val),
			})
		}
		if filter.Category != "" {
			q = q.Where(sq.Eq{"category": filter.Category})
		}
		if filter.OwnerID != "" {
			q = q.Where(sq.Eq{"owner_id": filter.OwnerID})
		}
	}

	if ordering != nil {
		q = q.OrderBy(orderBy(ordering))
	}

	qry, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building resources query")
	}
	var rows []resourceRow
	if err = repo.db.SelectContext(ctx, &rows, qry, args...); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	resources := make([]resource.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, repo.unpack(row))
	}
	return resources, nil
}

func (repo resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	row := repo.pack(res)
	qry, args, err := psql.Update(resourceTable).
		Set("title", row.Title).
		Set("description", row.Description).
		Set("category", row.Category).
		Set("file_ref", row.FileRef).
		Set("external_link", row.ExternalLink).
		Set("updated_at", row.UpdatedAt).
		Where(sq.Eq{"id": res.ID}).
		ToSql()
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "building resource update")
	}
	result, err := repo.db.ExecContext(ctx, qry, args...)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "updating resource")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return resource.Resource{}, resource.ErrNotFound
	}
	return res, nil
}

func (repo resourceRepository) DeleteResourcesByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	qry, args, err := psql.Delete(resourceTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building resources delete")
	}
	res, err := repo.db.ExecContext(ctx, qry, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting resources")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting resources")
}
