package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUsageStoreCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewUsageStore(db)

	t.Run("Contacts", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contacts WHERE organization_id = \?`).
			WithArgs("org_123").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		n, err := store.Count(context.Background(), "contacts", "org_123", nil)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 42 {
			t.Errorf("Count = %d, want 42", n)
		}
	})

	t.Run("MembersExcludeDeleted", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE organization_id = \? AND deleted_at IS NULL`).
			WithArgs("org_123").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		n, err := store.Count(context.Background(), "members", "org_123", nil)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Count = %d, want 3", n)
		}
	})

	t.Run("SignalsWindowed", func(t *testing.T) {
		since := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM signals WHERE organization_id = \? AND created_at >= \?`).
			WithArgs("org_123", since.Unix()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5000))

		n, err := store.Count(context.Background(), "signals", "org_123", &since)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 5000 {
			t.Errorf("Count = %d, want 5000", n)
		}
	})

	t.Run("UnknownResource", func(t *testing.T) {
		if _, err := store.Count(context.Background(), "widgets", "org_123", nil); err == nil {
			t.Error("Expected error for unknown resource kind")
		}
	})

	t.Run("QueryError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM contacts`).
			WithArgs("org_123").
			WillReturnError(errors.New("db down"))

		if _, err := store.Count(context.Background(), "contacts", "org_123", nil); err == nil {
			t.Error("Expected query error to propagate")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestUsageStorePlanTierOf(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	store := NewUsageStore(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT plan_tier FROM organizations WHERE id = \?`).
			WithArgs("org_123").
			WillReturnRows(sqlmock.NewRows([]string{"plan_tier"}).AddRow("pro"))

		tier, err := store.PlanTierOf(context.Background(), "org_123")
		if err != nil {
			t.Fatalf("PlanTierOf failed: %v", err)
		}
		if tier != "pro" {
			t.Errorf("Tier = %q, want pro", tier)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT plan_tier FROM organizations WHERE id = \?`).
			WithArgs("org_999").
			WillReturnRows(sqlmock.NewRows([]string{"plan_tier"}))

		tier, err := store.PlanTierOf(context.Background(), "org_999")
		if err != nil {
			t.Fatalf("PlanTierOf on a missing org should not error, got: %v", err)
		}
		if tier != "" {
			t.Errorf("Tier = %q, want empty for a missing org", tier)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
