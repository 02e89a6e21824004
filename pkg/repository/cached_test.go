package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/storefront/pkg/models"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) (*RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	repo := NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { repo.Close() })
	return repo, mr
}

func TestCachedStoreServesAndInvalidatesListings(t *testing.T) {
	s := newTestStorage(t)
	cache, mr := newTestCache(t)
	cs := NewCachedStore(s, cache, time.Minute, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	seedProduct(t, s, "Lamp", "10.00", "")

	first, err := cs.GetProducts(ctx, ProductFilter{})
	if err != nil || len(first) != 1 {
		t.Fatalf("first list: %d, err %v", len(first), err)
	}
	if !mr.Exists(ProductListKey(ProductFilter{})) {
		t.Fatal("listing was not cached")
	}

	// Written behind the cache's back: still served from cache.
	seedProduct(t, s, "Rug", "20.00", "")
	cached, err := cs.GetProducts(ctx, ProductFilter{})
	if err != nil || len(cached) != 1 {
		t.Fatalf("cached list: %d, err %v", len(cached), err)
	}
	if !cached[0].Price.Equal(models.MustMoney("10.00")) {
		t.Fatalf("cached price: got %s", cached[0].Price)
	}

	if _, err := cs.GetFeaturedProducts(ctx); err != nil {
		t.Fatalf("featured: %v", err)
	}
	if _, err := cs.CreateProduct(ctx, &models.Product{Name: "Vase", Price: models.MustMoney("5.00")}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if mr.Exists(ProductListKey(ProductFilter{})) || mr.Exists(featuredKey) {
		t.Fatal("product write did not invalidate listings")
	}

	fresh, err := cs.GetProducts(ctx, ProductFilter{})
	if err != nil || len(fresh) != 3 {
		t.Fatalf("fresh list: %d, err %v", len(fresh), err)
	}
}

// pausingStore loads a listing, then waits before returning it so a write can
// land in between.
type pausingStore struct {
	Store
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) GetProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	products, err := p.Store.GetProducts(ctx, f)
	p.once.Do(func() {
		close(p.loaded)
		<-p.release
	})
	return products, err
}

func TestCachedStoreDoesNotCacheListingLoadedBeforeDelete(t *testing.T) {
	s := newTestStorage(t)
	cache, mr := newTestCache(t)
	slow := &pausingStore{Store: s, loaded: make(chan struct{}), release: make(chan struct{})}
	cs := NewCachedStore(slow, cache, time.Minute, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	lamp := seedProduct(t, s, "Lamp", "10.00", "")

	done := make(chan error, 1)
	go func() {
		_, err := cs.GetProducts(ctx, ProductFilter{})
		done <- err
	}()
	<-slow.loaded

	if ok, err := cs.DeleteProduct(ctx, lamp.ID); err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("overlapping list: %v", err)
	}

	if mr.Exists(ProductListKey(ProductFilter{})) {
		t.Fatal("listing loaded before the delete was cached")
	}
	got, err := cs.GetProducts(ctx, ProductFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("soft-deleted product still listed: %d products", len(got))
	}
}

func TestCachedStoreFallsThroughWhenRedisDown(t *testing.T) {
	s := newTestStorage(t)
	cache, mr := newTestCache(t)
	cs := NewCachedStore(s, cache, time.Minute, time.Minute, zaptest.NewLogger(t))
	seedProduct(t, s, "Lamp", "10.00", "")

	mr.Close()
	got, err := cs.GetProducts(context.Background(), ProductFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("list without redis: %d, err %v", len(got), err)
	}
}

func TestCachedStoreUserCache(t *testing.T) {
	s := newTestStorage(t)
	cache, mr := newTestCache(t)
	cs := NewCachedStore(s, cache, time.Minute, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := cs.UpsertUser(ctx, &models.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := cs.GetUser(ctx, "u1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !mr.Exists("user:u1") {
		t.Fatal("user was not cached")
	}
	if _, err := cs.UpsertUser(ctx, &models.User{ID: "u1", Email: "b@example.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if mr.Exists("user:u1") {
		t.Fatal("upsert did not invalidate the user cache")
	}
	u, err := cs.GetUser(ctx, "u1")
	if err != nil || u.Email != "b@example.com" {
		t.Fatalf("user: %+v, err %v", u, err)
	}
}

func TestMemoryAuditStoreNewestFirst(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()
	base := time.Now()
	for i, action := range []string{"create", "update", "delete"} {
		if err := store.CreateAuditLog(ctx, &AuditLog{Action: action, EntityID: "p1", CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	store.CreateAuditLog(ctx, &AuditLog{Action: "create", EntityID: "p2"})

	logs, err := store.GetAuditLogs(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(logs) != 2 || logs[0].Action != "delete" || logs[1].Action != "update" {
		t.Fatalf("logs: %+v", logs)
	}
}
