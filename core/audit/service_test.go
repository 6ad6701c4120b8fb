package audit_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/audit"
	logsvc "github.com/trezcool/academia/services/logger"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
)

func setup(t *testing.T) (*audit.Service, audit.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewAuditRepository(db)
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	return audit.NewService(repo, logger), repo
}

func TestService_Record(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	svc.Record(ctx, audit.NewEntry{
		ActorID: "adm1",
		Action:  "verify payment of enrollment 1",
		Status:  audit.StatusSuccess,
		Detail:  "",
	})
	// unknown statuses are coerced rather than dropped; an attempt made is an
	// attempt recorded
	svc.Record(ctx, audit.NewEntry{ActorID: "adm1", Action: "something odd", Status: "LOL"})

	entries, err := repo.QueryEntries(ctx, nil, nil)
	if err != nil {
		t.Fatalf("QueryEntries() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %v; want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.ID == "" {
			t.Error("entry must be assigned an ID")
		}
		if entry.CreatedAt.IsZero() {
			t.Error("entry must be stamped with its creation time")
		}
		if !entry.Status.IsValid() {
			t.Errorf("Status = %v; must be coerced to a valid status", entry.Status)
		}
	}
}

func TestService_Record_survivesRepoFailure(t *testing.T) {
	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	svc := audit.NewService(failingRepo{}, logger)

	// must not panic nor surface the failure
	svc.Record(context.Background(), audit.NewEntry{ActorID: "adm1", Action: "verify payment"})
}

func TestService_Query(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Record(ctx, audit.NewEntry{
			ActorID: "adm1",
			Action:  fmt.Sprintf("verify payment of enrollment %d", i),
			Status:  audit.StatusSuccess,
		})
	}
	svc.Record(ctx, audit.NewEntry{
		ActorID: "adm1",
		Action:  "issue receipt for enrollment 1",
		Status:  audit.StatusWarning,
		Detail:  "rendering receipt: chromium not found",
	})
	svc.Record(ctx, audit.NewEntry{
		ActorID: "adm2",
		Action:  "set payment status of enrollment 2 to LOL",
		Status:  audit.StatusError,
		Detail:  "invalid payment status",
	})

	t.Run("all", func(t *testing.T) {
		entries, stats, err := svc.Query(ctx, nil, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 5 {
			t.Fatalf("len(entries) = %v; want 5", len(entries))
		}
		want := audit.Stats{Total: 5, Success: 3, Warnings: 1, Errors: 1}
		if stats != want {
			t.Errorf("stats = %+v; want %+v", stats, want)
		}
		if stats.Total != stats.Success+stats.Warnings+stats.Errors {
			t.Error("stats total must equal success + warnings + errors")
		}
		for i := 1; i < len(entries); i++ {
			if entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
				t.Error("entries must be ordered by creation time, newest first")
				break
			}
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		entries, stats, err := svc.Query(ctx, &audit.QueryFilter{Status: audit.StatusError}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("len(entries) = %v; want 1", len(entries))
		}
		want := audit.Stats{Total: 1, Errors: 1}
		if stats != want {
			t.Errorf("stats = %+v; want %+v", stats, want)
		}
	})

	t.Run("search on action and detail", func(t *testing.T) {
		entries, _, err := svc.Query(ctx, &audit.QueryFilter{Search: "enrollment 1"}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("len(entries) = %v; want 2", len(entries))
		}

		entries, _, err = svc.Query(ctx, &audit.QueryFilter{Search: "CHROMIUM"}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("len(entries) = %v; want 1 (case-insensitive)", len(entries))
		}
	})

	t.Run("pagination keeps stats over whole filtered set", func(t *testing.T) {
		entries, stats, err := svc.Query(ctx, &audit.QueryFilter{Limit: 2}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("len(entries) = %v; want 2", len(entries))
		}
		if stats.Total != 5 {
			t.Errorf("stats.Total = %v; want 5 regardless of pagination", stats.Total)
		}

		entries, _, err = svc.Query(ctx, &audit.QueryFilter{Limit: 2, Offset: 4}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("len(entries) = %v; want 1", len(entries))
		}

		entries, _, err = svc.Query(ctx, &audit.QueryFilter{Offset: 10}, nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("len(entries) = %v; want 0 past the end", len(entries))
		}
	})
}

func TestQueryFilter_Clean(t *testing.T) {
	tests := []struct {
		name       string
		filter     audit.QueryFilter
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", filter: audit.QueryFilter{}, wantLimit: 50},
		{name: "negative offset", filter: audit.QueryFilter{Offset: -1}, wantLimit: 50},
		{name: "oversized limit", filter: audit.QueryFilter{Limit: 10000}, wantLimit: 50},
		{name: "kept", filter: audit.QueryFilter{Limit: 25, Offset: 50}, wantLimit: 25, wantOffset: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Clean()
			if tt.filter.Limit != tt.wantLimit {
				t.Errorf("Limit = %v; want %v", tt.filter.Limit, tt.wantLimit)
			}
			if tt.filter.Offset != tt.wantOffset {
				t.Errorf("Offset = %v; want %v", tt.filter.Offset, tt.wantOffset)
			}
		})
	}
}

type failingRepo struct{}

func (failingRepo) CreateEntry(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("connection refused")
}

func (failingRepo) QueryEntries(context.Context, *audit.QueryFilter, []core.DBOrdering) ([]audit.Entry, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) CountEntries(context.Context, *audit.QueryFilter) (audit.Stats, error) {
	return audit.Stats{}, errors.New("connection refused")
}
