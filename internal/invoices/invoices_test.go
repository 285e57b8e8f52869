package invoices_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/remit/internal/invoices"
)

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", invoices.ErrNotFound, http.StatusNotFound},
		{"duplicate", invoices.ErrDuplicate, http.StatusConflict},
		{"state conflict", invoices.ErrStateConflict, http.StatusConflict},
		{"decision taken", invoices.ErrDecisionTaken, http.StatusConflict},
		{"missing actor", invoices.ErrMissingActor, http.StatusBadRequest},
		{"missing reason", invoices.ErrMissingReason, http.StatusBadRequest},
		{"empty batch", invoices.ErrEmptyBatch, http.StatusBadRequest},
		{"unknown error", errors.New("something else"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("find failed: %w", invoices.ErrNotFound), http.StatusNotFound},
		{"wrapped state conflict", fmt.Errorf("advance failed: %w", invoices.ErrStateConflict), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := invoices.MapHTTPStatus(tt.err)
			if got != tt.want {
				t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFiltersFromQuery(t *testing.T) {
	t.Run("all params present", func(t *testing.T) {
		id := uuid.New()
		values := url.Values{
			"status":      {"validated"},
			"currency":    {"JPY"},
			"intake_id":   {id.String()},
			"created_by":  {"clerk"},
			"is_valid":    {"true"},
			"exported":    {"false"},
			"approved_by": {"controller"},
		}

		f := invoices.FiltersFromQuery(values)

		if f.Status == nil || *f.Status != "validated" {
			t.Errorf("Status = %v, want validated", f.Status)
		}
		if f.Currency == nil || *f.Currency != "JPY" {
			t.Errorf("Currency = %v, want JPY", f.Currency)
		}
		if f.IntakeID == nil || *f.IntakeID != id {
			t.Errorf("IntakeID = %v, want %s", f.IntakeID, id)
		}
		if f.CreatedBy == nil || *f.CreatedBy != "clerk" {
			t.Errorf("CreatedBy = %v, want clerk", f.CreatedBy)
		}
		if f.IsValid == nil || !*f.IsValid {
			t.Errorf("IsValid = %v, want true", f.IsValid)
		}
		if f.Exported == nil || *f.Exported {
			t.Errorf("Exported = %v, want false", f.Exported)
		}
		if f.ApprovedBy == nil || *f.ApprovedBy != "controller" {
			t.Errorf("ApprovedBy = %v, want controller", f.ApprovedBy)
		}
	})

	t.Run("empty values ignored", func(t *testing.T) {
		f := invoices.FiltersFromQuery(url.Values{})

		if f.Status != nil || f.Currency != nil || f.IntakeID != nil ||
			f.CreatedBy != nil || f.IsValid != nil || f.Exported != nil ||
			f.ApprovedBy != nil {
			t.Errorf("Filters = %+v, want all nil", f)
		}
	})

	t.Run("invalid uuid ignored", func(t *testing.T) {
		f := invoices.FiltersFromQuery(url.Values{"intake_id": {"not-a-uuid"}})
		if f.IntakeID != nil {
			t.Errorf("IntakeID = %v, want nil", f.IntakeID)
		}
	})

	t.Run("non-boolean flags ignored", func(t *testing.T) {
		f := invoices.FiltersFromQuery(url.Values{
			"is_valid": {"yes"},
			"exported": {"1"},
		})
		if f.IsValid != nil {
			t.Errorf("IsValid = %v, want nil", f.IsValid)
		}
		if f.Exported != nil {
			t.Errorf("Exported = %v, want nil", f.Exported)
		}
	})
}
