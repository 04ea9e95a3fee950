package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acaifrutal/storefront-backend/internal/docstore"
	pkgerrors "github.com/acaifrutal/storefront-backend/pkg/errors"
	"github.com/acaifrutal/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const testScope = "acai-test"

type failingStore struct {
	docstore.Store
}

func (failingStore) List(context.Context, string, docstore.Query) ([]docstore.Document, error) {
	return nil, errors.New("permission denied")
}

func (failingStore) Get(context.Context, string) (docstore.Document, error) {
	return docstore.Document{}, errors.New("unavailable")
}

func newTestService(t *testing.T, store docstore.Store) Service {
	t.Helper()
	svc, err := NewService(NewRepository(store, testScope), logger.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedCatalog(t *testing.T, svc Service) {
	t.Helper()
	ctx := context.Background()
	products := []struct {
		id    string
		input ProductInput
	}{
		{"acai300", ProductInput{Name: "Açaí 300ml", Price: decimal.RequireFromString("15"), Type: "acai", DefaultIngredients: []string{"banana", "granola"}}},
		{"acai500", ProductInput{Name: "Açaí 500ml", Price: decimal.RequireFromString("22"), Type: "acai", OutOfStock: true}},
		{"agua", ProductInput{Name: "Água", Price: decimal.RequireFromString("3"), Type: "bebida"}},
		{"brownie", ProductInput{Name: "Brownie", Price: decimal.RequireFromString("8"), Type: "doce"}},
		{"cookie", ProductInput{Name: "Cookie", Price: decimal.RequireFromString("6"), Type: "doce", OutOfStock: true}},
		{"refri", ProductInput{Name: "Refrigerante", Price: decimal.RequireFromString("6"), Type: "bebida"}},
		{"suco", ProductInput{Name: "Suco", Price: decimal.RequireFromString("7"), Type: "bebida"}},
	}
	for _, p := range products {
		if _, err := svc.UpsertProduct(ctx, p.id, p.input); err != nil {
			t.Fatalf("upsert %s: %v", p.id, err)
		}
	}
	if _, err := svc.UpsertTopping(ctx, "t1", ToppingInput{Name: "Leite Ninho", Price: decimal.RequireFromString("2.5")}); err != nil {
		t.Fatalf("upsert topping: %v", err)
	}
	if _, err := svc.UpsertTopping(ctx, "t2", ToppingInput{Name: "Nutella", Price: decimal.RequireFromString("4"), OutOfStock: true}); err != nil {
		t.Fatalf("upsert topping: %v", err)
	}
}

func TestListProductsFiltersTypeAndStock(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore())
	seedCatalog(t, svc)
	ctx := context.Background()

	acai := svc.ListProducts(ctx, ListFilter{Type: "acai"})
	if len(acai) != 1 || acai[0].ID != "acai300" {
		t.Fatalf("unexpected acai listing %+v", acai)
	}
	if acai[0].Price.String() != "15" || len(acai[0].DefaultIngredients) != 2 {
		t.Fatalf("product fields not preserved: %+v", acai[0])
	}

	all := svc.ListProducts(ctx, ListFilter{IncludeOutOfStock: true})
	if len(all) != 7 {
		t.Fatalf("expected 7 products, got %d", len(all))
	}
	if all[0].Name != "Açaí 300ml" {
		t.Fatalf("expected name ordering, got %q first", all[0].Name)
	}

	toppings := svc.ListToppings(ctx, false)
	if len(toppings) != 1 || toppings[0].ID != "t1" {
		t.Fatalf("unexpected toppings %+v", toppings)
	}
}

func TestRecommendationsSkipAcaiStockAndCart(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore())
	seedCatalog(t, svc)

	got := svc.Recommendations(context.Background(), []string{"agua"})
	ids := make([]string, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	want := []string{"brownie", "refri", "suco"}
	if len(ids) != len(want) {
		t.Fatalf("unexpected recommendations %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("unexpected recommendations %v", ids)
		}
	}
}

func TestReadsDegradeToEmpty(t *testing.T) {
	svc := newTestService(t, failingStore{Store: docstore.NewMemoryStore()})
	ctx := context.Background()

	if got := svc.ListProducts(ctx, ListFilter{}); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil products, got %#v", got)
	}
	if got := svc.ListToppings(ctx, true); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil toppings, got %#v", got)
	}
	if got := svc.Recommendations(ctx, nil); len(got) != 0 {
		t.Fatalf("expected no recommendations, got %+v", got)
	}
	if _, err := svc.GetProduct(ctx, "acai300"); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGetProductNotFound(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore())
	if _, err := svc.GetProduct(context.Background(), "missing"); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertProductValidation(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.UpsertProduct(ctx, "", ProductInput{Price: decimal.NewFromInt(1), Type: "acai"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}
	if _, err := svc.UpsertProduct(ctx, "", ProductInput{Name: "x", Price: decimal.NewFromInt(-1), Type: "acai"}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}

	created, err := svc.UpsertProduct(ctx, "", ProductInput{Name: "Tapioca", Price: decimal.NewFromInt(9), Type: " Salgado "})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.ID == "" || created.Type != "salgado" {
		t.Fatalf("unexpected product %+v", created)
	}
}

func TestWatchEmitsSnapshots(t *testing.T) {
	store := docstore.NewMemoryStore()
	svc := newTestService(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan Snapshot, 16)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(s Snapshot) { updates <- s })
	}()

	if _, err := svc.UpsertProduct(context.Background(), "agua", ProductInput{Name: "Água", Price: decimal.NewFromInt(3), Type: "bebida"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if _, ok := snap.Product("agua"); ok {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for catalog snapshot")
		}
	}
}

func TestSnapshotFilterMatchesService(t *testing.T) {
	svc := newTestService(t, docstore.NewMemoryStore())
	seedCatalog(t, svc)
	ctx := context.Background()

	snap := svc.Snapshot(ctx)
	filter := ListFilter{Type: "acai"}
	fromSnap := snap.Filter(filter)
	fromSvc := svc.ListProducts(ctx, filter)
	if len(fromSnap) != len(fromSvc) {
		t.Fatalf("snapshot filter %d products, service %d", len(fromSnap), len(fromSvc))
	}
	for i := range fromSvc {
		if fromSnap[i].ID != fromSvc[i].ID {
			t.Fatalf("order mismatch at %d: %s vs %s", i, fromSnap[i].ID, fromSvc[i].ID)
		}
	}
	if got := snap.Recommendations([]string{"agua"}); len(got) != len(svc.Recommendations(ctx, []string{"agua"})) {
		t.Fatalf("unexpected snapshot recommendations %v", got)
	}
}
