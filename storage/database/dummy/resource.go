package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/resource"
)

type resourceRepository struct {
	db *resourceTable
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) resource.Repository {
	return &resourceRepository{db: db.resource}
}

func (repo *resourceRepository) query() []resource.Resource {
	resources := make([]resource.Resource, 0, len(repo.db.table))
	for _, res := range repo.db.table {
		resources = append(resources, *res)
	}
	return resources
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = uuid.New().String()
	repo.db.table[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id string) (resource.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if res, ok := repo.db.table[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryResources(ctx context.Context, filter *resource.QueryFilter, ordering []core.DBOrdering) ([]resource.Resource, error) {
	repo.db.RLock()
	resources := repo.query()
	repo.db.RUnlock()

	if filter != nil && !filter.IsEmpty() {
		matched := make([]resource.Resource, 0, len(resources))
		for _, res := range resources {
			if filter.Search != "" &&
				!(containsFold(res.Title, filter.Search) || containsFold(res.Description, filter.Search)) {
				continue
			}
			if filter.Category != "" && res.Category != filter.Category {
				continue
			}
			if filter.OwnerID != "" && res.OwnerID != filter.OwnerID {
				continue
			}
			matched = append(matched, res)
		}
		resources = matched
	}

	sort.Slice(resources, func(i, j int) bool { return resources[i].CreatedAt.Before(resources[j].CreatedAt) })
	return resources, nil
}

func (repo *resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[res.ID]; !ok {
		return resource.Resource{}, resource.ErrNotFound
	}
	repo.db.table[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) DeleteResourcesByID(ctx context.Context, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
