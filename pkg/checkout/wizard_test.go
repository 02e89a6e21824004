package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/client"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
)

type fakePlacer struct {
	got   []client.OrderInput
	err   error
	order *models.Order
}

func (f *fakePlacer) CreateOrder(_ context.Context, in client.OrderInput) (*models.Order, error) {
	f.got = append(f.got, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func cartItems() []models.CartItem {
	a := &models.Product{ID: "a", Price: models.MustMoney("50"), SalePrice: models.SomeMoney(models.MustMoney("40"))}
	b := &models.Product{ID: "b", Price: models.MustMoney("0.50")}
	return []models.CartItem{
		{ID: "c1", ProductID: "a", Quantity: 4, Product: a},
		{ID: "c2", ProductID: "b", Quantity: 2, Product: b},
	}
}

func validAddress() models.ShippingAddress {
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

func toReview(t *testing.T, w *Wizard) {
	t.Helper()
	w.SetShipping(validAddress())
	if err := w.Next(); err != nil {
		t.Fatalf("shipping -> payment: %v", err)
	}
	if err := w.Next(); err != nil {
		t.Fatalf("payment -> review: %v", err)
	}
	if w.Step() != StepReview {
		t.Fatalf("step: %s", w.Step())
	}
}

func TestSummary(t *testing.T) {
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, &fakePlacer{})
	sum := w.Summary()
	if sum.Subtotal.String() != "161.00" || sum.Tax.String() != "12.88" || sum.Total.String() != "173.88" {
		t.Fatalf("summary: %+v", sum)
	}
	if w.Empty() {
		t.Fatal("cart should not be empty")
	}
}

func TestEmptyCart(t *testing.T) {
	w := NewWizard(nil, pricing.DefaultTaxRate, &fakePlacer{})
	if !w.Empty() {
		t.Fatal("expected empty")
	}
	w.SetShipping(validAddress())
	if err := w.Next(); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if w.Step() != StepShipping {
		t.Fatalf("step moved: %s", w.Step())
	}
}

func TestShippingValidation(t *testing.T) {
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, &fakePlacer{})
	addr := validAddress()
	addr.Email = "not-an-email"
	w.SetShipping(addr)
	if err := w.Next(); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if w.Step() != StepShipping {
		t.Fatalf("step moved: %s", w.Step())
	}

	addr = validAddress()
	addr.Phone = ""
	w.SetShipping(addr)
	if err := w.Next(); err != nil {
		t.Fatalf("phone is optional: %v", err)
	}
}

func TestStepsAreLinear(t *testing.T) {
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, &fakePlacer{})
	w.Back()
	if w.Step() != StepShipping {
		t.Fatalf("back from first step: %s", w.Step())
	}
	toReview(t, w)
	if err := w.Next(); err == nil {
		t.Fatal("next from review should fail")
	}
	w.Back()
	if w.Step() != StepPayment {
		t.Fatalf("back from review: %s", w.Step())
	}
	w.Back()
	if w.Step() != StepShipping {
		t.Fatalf("back from payment: %s", w.Step())
	}
}

func TestPaymentMethod(t *testing.T) {
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, &fakePlacer{})
	if w.PaymentMethod() != PaymentCard {
		t.Fatalf("default: %s", w.PaymentMethod())
	}
	if err := w.SetPaymentMethod(PaymentPayPal); err != nil {
		t.Fatalf("paypal: %v", err)
	}
	if err := w.SetPaymentMethod("crypto"); apperr.KindOf(err) != apperr.Validation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if w.PaymentMethod() != PaymentPayPal {
		t.Fatalf("method changed on error: %s", w.PaymentMethod())
	}
}

func TestSubmitSuccess(t *testing.T) {
	placer := &fakePlacer{order: &models.Order{ID: "o1"}}
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, placer)
	toReview(t, w)

	outcome, order, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome != NavigateProfile || order.ID != "o1" {
		t.Fatalf("outcome %v order %+v", outcome, order)
	}
	if len(placer.got) != 1 {
		t.Fatalf("calls: %d", len(placer.got))
	}
	in := placer.got[0]
	if in.Total.String() != "173.88" || in.PaymentMethod != PaymentCard || in.Status != models.OrderStatusPending {
		t.Fatalf("order input: %+v", in)
	}
	if len(in.OrderItems) != 2 || in.OrderItems[0].Price.String() != "40.00" {
		t.Fatalf("items: %+v", in.OrderItems)
	}
	if !w.Empty() {
		t.Fatal("wizard should drop the cart after ordering")
	}
}

func TestSubmitOnlyFromReview(t *testing.T) {
	placer := &fakePlacer{}
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, placer)
	if _, _, err := w.Submit(context.Background()); err == nil {
		t.Fatal("submit from shipping should fail")
	}
	if len(placer.got) != 0 {
		t.Fatal("order placed from shipping step")
	}
}

func TestSubmitUnauthorized(t *testing.T) {
	placer := &fakePlacer{err: apperr.New(apperr.Unauthorized, "session expired")}
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, placer)
	toReview(t, w)

	outcome, _, err := w.Submit(context.Background())
	if outcome != LoginRedirect || !client.IsUnauthorized(err) {
		t.Fatalf("outcome %v err %v", outcome, err)
	}
}

func TestSubmitFailureStaysOnReview(t *testing.T) {
	boom := errors.New("connection reset")
	placer := &fakePlacer{err: boom}
	w := NewWizard(cartItems(), pricing.DefaultTaxRate, placer)
	toReview(t, w)

	outcome, order, err := w.Submit(context.Background())
	if outcome != StayOnReview || order != nil || !errors.Is(err, boom) {
		t.Fatalf("outcome %v order %v err %v", outcome, order, err)
	}
	if w.Step() != StepReview || w.Empty() {
		t.Fatal("wizard should keep its state after a failed submit")
	}
}
