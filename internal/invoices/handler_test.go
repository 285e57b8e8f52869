package invoices_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/remit/internal/invoices"
	"github.com/JaimeStill/remit/pkg/pagination"
	"github.com/JaimeStill/remit/pkg/routes"
)

type mockSystem struct {
	listFn            func(ctx context.Context, page pagination.PageRequest, filters invoices.Filters) (*pagination.PageResult[invoices.Invoice], error)
	findFn            func(ctx context.Context, id uuid.UUID) (*invoices.Invoice, error)
	findByIntakeFn    func(ctx context.Context, intakeID uuid.UUID) (*invoices.Invoice, error)
	lineItemsFn       func(ctx context.Context, invoiceID uuid.UUID) ([]invoices.LineItem, error)
	findPendingFn     func(ctx context.Context, limit int) ([]invoices.Invoice, error)
	markProcessingFn  func(ctx context.Context, id uuid.UUID) (*invoices.Invoice, error)
	storeExtractionFn func(ctx context.Context, id uuid.UUID, cmd invoices.ExtractionCommand) (*invoices.Invoice, error)
	markFailedFn      func(ctx context.Context, id uuid.UUID, reason string, raw *string) (*invoices.Invoice, error)
	storeValidationFn func(ctx context.Context, id uuid.UUID, cmd invoices.ValidationCommand) (*invoices.Invoice, error)
	storeCurrencyFn   func(ctx context.Context, id uuid.UUID, cmd invoices.CurrencyCommand) (*invoices.Invoice, error)
	approveFn         func(ctx context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error)
	rejectFn          func(ctx context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error)
	markExportedFn    func(ctx context.Context, ids []uuid.UUID, batchID string) ([]invoices.Invoice, error)
	countDuplicatesFn func(ctx context.Context, key invoices.DuplicateKey, exclude uuid.UUID) (int, error)
}

func (m *mockSystem) Handler() *invoices.Handler {
	return newTestHandler(m)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters invoices.Filters) (*pagination.PageResult[invoices.Invoice], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*invoices.Invoice, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) FindByIntake(ctx context.Context, intakeID uuid.UUID) (*invoices.Invoice, error) {
	return m.findByIntakeFn(ctx, intakeID)
}

func (m *mockSystem) LineItems(ctx context.Context, invoiceID uuid.UUID) ([]invoices.LineItem, error) {
	return m.lineItemsFn(ctx, invoiceID)
}

func (m *mockSystem) FindPending(ctx context.Context, limit int) ([]invoices.Invoice, error) {
	return m.findPendingFn(ctx, limit)
}

func (m *mockSystem) MarkProcessing(ctx context.Context, id uuid.UUID) (*invoices.Invoice, error) {
	return m.markProcessingFn(ctx, id)
}

func (m *mockSystem) StoreExtraction(ctx context.Context, id uuid.UUID, cmd invoices.ExtractionCommand) (*invoices.Invoice, error) {
	return m.storeExtractionFn(ctx, id, cmd)
}

func (m *mockSystem) MarkFailed(ctx context.Context, id uuid.UUID, reason string, raw *string) (*invoices.Invoice, error) {
	return m.markFailedFn(ctx, id, reason, raw)
}

func (m *mockSystem) StoreValidation(ctx context.Context, id uuid.UUID, cmd invoices.ValidationCommand) (*invoices.Invoice, error) {
	return m.storeValidationFn(ctx, id, cmd)
}

func (m *mockSystem) StoreCurrency(ctx context.Context, id uuid.UUID, cmd invoices.CurrencyCommand) (*invoices.Invoice, error) {
	return m.storeCurrencyFn(ctx, id, cmd)
}

func (m *mockSystem) Approve(ctx context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error) {
	return m.approveFn(ctx, id, cmd)
}

func (m *mockSystem) Reject(ctx context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error) {
	return m.rejectFn(ctx, id, cmd)
}

func (m *mockSystem) MarkExported(ctx context.Context, ids []uuid.UUID, batchID string) ([]invoices.Invoice, error) {
	return m.markExportedFn(ctx, ids, batchID)
}

func (m *mockSystem) CountDuplicates(ctx context.Context, key invoices.DuplicateKey, exclude uuid.UUID) (int, error) {
	return m.countDuplicatesFn(ctx, key, exclude)
}

func newTestHandler(sys invoices.System) *invoices.Handler {
	return invoices.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *invoices.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	for _, group := range []routes.Group{h.Routes(), h.IntakeRoutes()} {
		for _, route := range group.Routes {
			pattern := route.Method + " " + group.Prefix + route.Pattern
			mux.HandleFunc(pattern, route.Handler)
		}
	}
	return mux
}

func sampleInvoice() invoices.Invoice {
	now := time.Now().Truncate(time.Second)
	issuer := "株式会社サンプル"
	number := "INV-2026-001"
	return invoices.Invoice{
		ID:                uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		IntakeID:          uuid.MustParse("660e8400-e29b-41d4-a716-446655440000"),
		CreatedBy:         "clerk",
		Status:            invoices.StatusValidated,
		IssuerName:        &issuer,
		InvoiceNumber:     &number,
		Currency:          "JPY",
		TotalInclusiveTax: decimal.NullDecimal{Decimal: decimal.NewFromInt(110000), Valid: true},
		IsValid:           true,
		ValidationErrors:  []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestHandlerList(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, _ invoices.Filters) (*pagination.PageResult[invoices.Invoice], error) {
			result := pagination.NewPageResult([]invoices.Invoice{inv}, 1, 1, 20)
			return &result, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/invoices", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[invoices.Invoice]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("total = %d, want 1", result.Total)
	}
	if len(result.Data) != 1 || result.Data[0].ID != inv.ID {
		t.Errorf("data = %+v, want one invoice %s", result.Data, inv.ID)
	}
}

func TestHandlerFind(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*invoices.Invoice, error) {
			if id != inv.ID {
				return nil, invoices.ErrNotFound
			}
			return &inv, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/invoices/"+inv.ID.String(), nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got invoices.Invoice
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Status != invoices.StatusValidated {
			t.Errorf("status = %s, want validated", got.Status)
		}
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/invoices/"+uuid.NewString(), nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/invoices/not-a-uuid", nil)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerSearch(t *testing.T) {
	inv := sampleInvoice()
	var captured invoices.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, filters invoices.Filters) (*pagination.PageResult[invoices.Invoice], error) {
			captured = filters
			result := pagination.NewPageResult([]invoices.Invoice{inv}, 1, 1, 20)
			return &result, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	body := bytes.NewBufferString(`{"status":"validated","currency":"JPY"}`)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/invoices/search", body)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Status == nil || *captured.Status != "validated" {
		t.Errorf("filter status = %v, want validated", captured.Status)
	}
	if captured.Currency == nil || *captured.Currency != "JPY" {
		t.Errorf("filter currency = %v, want JPY", captured.Currency)
	}
}

func TestHandlerApprove(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		approveFn: func(_ context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error) {
			if cmd.Actor == "" {
				return nil, invoices.ErrMissingActor
			}
			approved := inv
			approved.Status = invoices.StatusApproved
			approved.ApprovedBy = &cmd.Actor
			return &approved, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("records decision", func(t *testing.T) {
		body := bytes.NewBufferString(`{"actor":"controller","comment":"checked against PO"}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/invoices/"+inv.ID.String()+"/approve", body)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got invoices.Invoice
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Status != invoices.StatusApproved {
			t.Errorf("status = %s, want approved", got.Status)
		}
		if got.ApprovedBy == nil || *got.ApprovedBy != "controller" {
			t.Errorf("approved_by = %v, want controller", got.ApprovedBy)
		}
	})

	t.Run("missing actor returns 400", func(t *testing.T) {
		body := bytes.NewBufferString(`{}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/invoices/"+inv.ID.String()+"/approve", body)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerReject(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		rejectFn: func(_ context.Context, id uuid.UUID, cmd invoices.DecisionCommand) (*invoices.Invoice, error) {
			if cmd.Comment == "" {
				return nil, invoices.ErrMissingReason
			}
			rejected := inv
			rejected.Status = invoices.StatusRejected
			return &rejected, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	t.Run("records rejection", func(t *testing.T) {
		body := bytes.NewBufferString(`{"actor":"controller","comment":"amount disputed"}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/invoices/"+inv.ID.String()+"/reject", body)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("missing reason returns 400", func(t *testing.T) {
		body := bytes.NewBufferString(`{"actor":"controller"}`)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/invoices/"+inv.ID.String()+"/reject", body)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerLineItems(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		lineItemsFn: func(_ context.Context, invoiceID uuid.UUID) ([]invoices.LineItem, error) {
			return []invoices.LineItem{
				{ID: uuid.New(), InvoiceID: invoiceID, LineNumber: 1, ItemDescription: "Consulting"},
				{ID: uuid.New(), InvoiceID: invoiceID, LineNumber: 2, ItemDescription: "Support"},
			}, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/invoices/"+inv.ID.String()+"/line-items", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var items []invoices.LineItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}
}

func TestHandlerFindByIntake(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		findByIntakeFn: func(_ context.Context, intakeID uuid.UUID) (*invoices.Invoice, error) {
			if intakeID != inv.IntakeID {
				return nil, invoices.ErrNotFound
			}
			return &inv, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/intakes/"+inv.IntakeID.String()+"/invoice", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got invoices.Invoice
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != inv.ID {
		t.Errorf("id = %s, want %s", got.ID, inv.ID)
	}
}

// Registering every invoice route on one mux must not trip the ServeMux
// pattern conflict check, and the two wildcard lookups must both resolve.
func TestHandlerRouteRegistration(t *testing.T) {
	inv := sampleInvoice()
	sys := &mockSystem{
		lineItemsFn: func(_ context.Context, invoiceID uuid.UUID) ([]invoices.LineItem, error) {
			return []invoices.LineItem{}, nil
		},
		findByIntakeFn: func(_ context.Context, intakeID uuid.UUID) (*invoices.Invoice, error) {
			return &inv, nil
		},
	}

	mux := setupMux(newTestHandler(sys))

	for _, path := range []string{
		"/invoices/" + inv.ID.String() + "/line-items",
		"/intakes/" + inv.IntakeID.String() + "/invoice",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
