package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/events"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	url      string
	store    *repository.GormStorage
	sessions *auth.Sessions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	log := zaptest.NewLogger(t)
	store := repository.NewGormStorage(db, pricing.DefaultTaxRate, log)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "client-test", AllowedOrigins: []string{"http://localhost:5173"}},
		Auth: config.AuthConfig{
			SessionSecret: "client-test",
			SessionTTL:    time.Hour,
			CookieName:    "storefront_session",
			AuthURL:       "https://idp.test/authorize",
			TokenURL:      "https://idp.test/token",
		},
	}
	sessions, err := auth.NewSessions(&cfg.Auth)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	gw := gateway.NewGateway(cfg, log, gateway.Deps{
		Store:    store,
		Audit:    repository.NewMemoryAuditStore(),
		Hub:      events.NewHub(cfg.Server.AllowedOrigins, log),
		Sessions: sessions,
		Provider: auth.NewProvider(&cfg.Auth, store, sessions, log),
	})
	gw.SetupRoutes()

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, store: store, sessions: sessions}
}

func (s *testServer) client(t *testing.T, userID string, admin bool) *Client {
	t.Helper()
	u, err := s.store.UpsertUser(context.Background(), &models.User{ID: userID, Email: userID + "@example.com", IsAdmin: admin})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	token, _, err := s.sessions.Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := New(s.url, WithToken(token))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func testAddress() models.ShippingAddress {
	return models.ShippingAddress{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Address:   "1 Analytical Way",
		City:      "London",
		State:     "LDN",
		ZipCode:   "10001",
	}
}

func TestCartAndOrderFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := srv.client(t, "admin", true)
	shopper := srv.client(t, "shopper", false)

	p, err := admin.CreateProduct(ctx, ProductInput{
		Name:      "Headphones",
		Price:     models.MustMoney("50"),
		SalePrice: models.SomeMoney(models.MustMoney("40")),
		InStock:   10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if _, err := shopper.AddToCart(ctx, p.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := shopper.AddToCart(ctx, p.ID, 3); err != nil {
		t.Fatalf("add again: %v", err)
	}
	cart, err := shopper.Cart(ctx)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	if len(cart) != 1 || cart[0].Quantity != 4 {
		t.Fatalf("cart: %+v", cart)
	}

	sum := pricing.Summarize(pricing.CartLines(cart), pricing.DefaultTaxRate)
	if sum.Total.String() != "172.80" {
		t.Fatalf("total: %s", sum.Total)
	}

	// Warm the orders cache so creation has something to invalidate.
	if orders, err := shopper.Orders(ctx); err != nil || len(orders) != 0 {
		t.Fatalf("orders before: %v %v", orders, err)
	}

	order, err := shopper.CreateOrder(ctx, OrderInput{
		Status:          models.OrderStatusPending,
		Subtotal:        sum.Subtotal,
		Tax:             sum.Tax,
		Total:           sum.Total,
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
		OrderItems:      []OrderItemInput{{ProductID: p.ID, Quantity: 4, Price: models.MustMoney("40")}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Total.String() != "172.80" {
		t.Fatalf("order total: %s", order.Total)
	}

	cart, err = shopper.Cart(ctx)
	if err != nil {
		t.Fatalf("cart after: %v", err)
	}
	if len(cart) != 0 {
		t.Fatalf("cart not cleared in cache: %+v", cart)
	}
	orders, err := shopper.Orders(ctx)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != order.ID {
		t.Fatalf("orders: %+v", orders)
	}

	updated, err := admin.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if updated.Status != models.OrderStatusShipped {
		t.Fatalf("status: %s", updated.Status)
	}
	stats, err := admin.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Orders != 1 || stats.Revenue.String() != "172.80" {
		t.Fatalf("stats: %+v", stats)
	}
}

func TestProductWritesInvalidateListings(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := srv.client(t, "admin", true)

	list, err := admin.Products(ctx, ProductQuery{})
	if err != nil || len(list) != 0 {
		t.Fatalf("empty listing: %v %v", list, err)
	}
	p, err := admin.CreateProduct(ctx, ProductInput{Name: "Lamp", Price: models.MustMoney("25"), InStock: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err = admin.Products(ctx, ProductQuery{})
	if err != nil || len(list) != 1 {
		t.Fatalf("listing after create: %v %v", list, err)
	}

	name := "Desk Lamp"
	if _, err := admin.UpdateProduct(ctx, p.ID, ProductPatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := admin.Product(ctx, p.ID)
	if err != nil || got.Name != "Desk Lamp" {
		t.Fatalf("product after update: %+v %v", got, err)
	}

	if err := admin.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = admin.Products(ctx, ProductQuery{})
	if err != nil || len(list) != 0 {
		t.Fatalf("listing after delete: %v %v", list, err)
	}
}

func TestWishlistKeepsState(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin := srv.client(t, "admin", true)
	shopper := srv.client(t, "shopper", false)

	p, err := admin.CreateProduct(ctx, ProductInput{Name: "Mug", Price: models.MustMoney("12"), InStock: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	item, err := shopper.AddToWishlist(ctx, p.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !shopper.State().InWishlist(p.ID) {
		t.Fatal("expected product in wishlist state")
	}
	items, err := shopper.Wishlist(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("wishlist: %v %v", items, err)
	}

	if err := shopper.RemoveFromWishlist(ctx, item.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if shopper.State().InWishlist(p.ID) {
		t.Fatal("expected product removed from state")
	}
	items, err = shopper.Wishlist(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("wishlist after remove: %v %v", items, err)
	}
}

func TestUnauthorizedWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	c, err := New(srv.url)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = c.Cart(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// Public reads still work.
	if _, err := c.Categories(context.Background()); err != nil {
		t.Fatalf("categories: %v", err)
	}
}

func TestForbiddenIsNotUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	shopper := srv.client(t, "shopper", false)
	_, err := shopper.Stats(context.Background())
	if IsUnauthorized(err) {
		t.Fatal("403 must not trigger a login redirect")
	}
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Fatalf("kind: %v (%v)", apperr.KindOf(err), err)
	}
}

func countingServer(t *testing.T, release <-chan struct{}) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if release != nil {
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"c1","name":"Audio"}]`)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestConcurrentReadsShareOneRequest(t *testing.T) {
	release := make(chan struct{})
	srv, hits := countingServer(t, release)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cats, err := c.Categories(context.Background())
			if err == nil && (len(cats) != 1 || cats[0].Name != "Audio") {
				err = fmt.Errorf("unexpected categories %+v", cats)
			}
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

// cartServer holds the first cart read until release is closed; that read
// reports the cart as it was before any add.
type cartServer struct {
	mu      sync.Mutex
	items   int
	reads   int
	firstIn chan struct{}
	release chan struct{}
}

func (s *cartServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		s.reads++
		first, items := s.reads == 1, s.items
		s.mu.Unlock()
		if first {
			close(s.firstIn)
			<-s.release
		}
		fmt.Fprint(w, "[")
		for i := 0; i < items; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":"c%d","productId":"p1","quantity":1}`, i+1)
		}
		fmt.Fprint(w, "]")
	case http.MethodPost:
		s.mu.Lock()
		s.items++
		s.mu.Unlock()
		fmt.Fprint(w, `{"id":"c1","productId":"p1","quantity":1}`)
	}
}

func TestReadAfterMutationSkipsOlderInFlightRead(t *testing.T) {
	cs := &cartServer{firstIn: make(chan struct{}), release: make(chan struct{})}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	early := make(chan error, 1)
	go func() {
		_, err := c.Cart(ctx)
		early <- err
	}()
	<-cs.firstIn

	if _, err := c.AddToCart(ctx, "p1", 1); err != nil {
		close(cs.release)
		t.Fatalf("add: %v", err)
	}

	type result struct {
		items []models.CartItem
		err   error
	}
	late := make(chan result, 1)
	go func() {
		items, err := c.Cart(ctx)
		late <- result{items, err}
	}()

	select {
	case r := <-late:
		if r.err != nil {
			close(cs.release)
			t.Fatalf("cart: %v", r.err)
		}
		if len(r.items) != 1 {
			close(cs.release)
			t.Fatalf("cart read after add: got %d items want 1", len(r.items))
		}
	case <-time.After(2 * time.Second):
		close(cs.release)
		t.Fatal("cart read after add waited on the read started before it")
	}

	close(cs.release)
	if err := <-early; err != nil {
		t.Fatalf("early read: %v", err)
	}
	items, err := c.Cart(ctx)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("cached cart: got %d items want 1", len(items))
	}
}

func TestLogoutDuringReads(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	shopper := srv.client(t, "shopper", false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shopper.Categories(ctx)
			shopper.Cart(ctx)
		}()
	}
	if err := shopper.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	wg.Wait()

	if _, err := shopper.Cart(ctx); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestReadsAreCachedUntilInvalidated(t *testing.T) {
	srv, hits := countingServer(t, nil)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.Categories(ctx); err != nil {
			t.Fatalf("categories: %v", err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}

	c.Invalidate(pathCart)
	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("unrelated invalidation refetched: %d", n)
	}

	c.Invalidate(pathCategories)
	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Fatalf("expected refetch, got %d", n)
	}
}

func TestCacheDropsResponseInvalidatedInFlight(t *testing.T) {
	c := newCache()
	v := c.version("/api/cart")
	c.invalidate("/api/cart")
	if c.put("/api/cart", []byte(`[]`), v) {
		t.Fatal("stale response stored")
	}
	v = c.version("/api/orders")
	c.reset()
	if c.put("/api/orders", []byte(`[]`), v) {
		t.Fatal("response from before reset stored")
	}
	v = c.version("/api/orders")
	if !c.put("/api/orders", []byte(`[]`), v) {
		t.Fatal("fresh response refused")
	}
}

func TestLoginRedirect(t *testing.T) {
	c, err := New("http://shop.test/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.loginDelay = 10 * time.Millisecond

	start := time.Now()
	u, err := c.LoginRedirect(context.Background())
	if err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if u != "http://shop.test/api/login" {
		t.Fatalf("url: %s", u)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("redirect did not wait")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.loginDelay = time.Hour
	if _, err := c.LoginRedirect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestLogoutResetsState(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	shopper := srv.client(t, "shopper", false)

	shopper.State().SetWishlist([]models.WishlistItem{{ID: "w1", ProductID: "p1"}})
	shopper.State().ToggleCart()
	if _, err := shopper.Cart(ctx); err != nil {
		t.Fatalf("cart: %v", err)
	}

	if err := shopper.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if shopper.State().CartOpen() || shopper.State().InWishlist("p1") {
		t.Fatal("state survived logout")
	}
	if _, err := shopper.Cart(ctx); !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}
}

func TestStateToggle(t *testing.T) {
	s := NewState()
	if !s.ToggleCart() || !s.CartOpen() {
		t.Fatal("toggle should open")
	}
	s.CloseCart()
	if s.CartOpen() {
		t.Fatal("close failed")
	}
	s.OpenCart()
	if s.ToggleCart() {
		t.Fatal("toggle should close")
	}
	if id, ok := s.WishlistItemID("missing"); ok || id != "" {
		t.Fatalf("unexpected wishlist entry %q", id)
	}
}
