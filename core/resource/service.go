package resource

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound = errors.New("resource not found")
)

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResource(ctx context.Context, id string) (Resource, error)
		// QueryResources applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Resource.Title or Resource.Description.
		QueryResources(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Resource, error)
		UpdateResource(ctx context.Context, res Resource) (Resource, error)
		DeleteResourcesByID(ctx context.Context, ids []string) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ownerID string, nr NewResource) (Resource, error) {
	now := time.Now().UTC()
	res := Resource{
		Title:        nr.Title,
		Description:  nr.Description,
		OwnerID:      ownerID,
		Category:     nr.Category,
		FileRef:      nr.FileRef,
		ExternalLink: nr.ExternalLink,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateResource(ctx, res)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Resource, error) {
	return svc.repo.GetResource(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Resource, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryResources(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, ur UpdateResource) (Resource, error) {
	res, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}

	if ur.Title != "" {
		res.Title = ur.Title
	}
	if ur.Description != "" {
		res.Description = ur.Description
	}
	if ur.Category != "" {
		res.Category = ur.Category
	}
	if ur.FileRef != "" {
		res.FileRef = ur.FileRef
	}
	if ur.ExternalLink != "" {
		res.ExternalLink = ur.ExternalLink
	}
	res.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdateResource(ctx, res)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteResourcesByID(ctx, ids)
	return err
}
