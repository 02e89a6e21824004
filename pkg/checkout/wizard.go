// Package checkout drives the three-step checkout: shipping details, payment
// method, then a review screen that places the order.
package checkout

import (
	"context"
	"fmt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/client"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pricing"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Outcome tells the caller where to go after Submit.
type Outcome int

const (
	StayOnReview Outcome = iota
	NavigateProfile
	LoginRedirect
)

const (
	PaymentCard   = "card"
	PaymentPayPal = "paypal"
)

// OrderPlacer is the part of the client SDK the wizard needs.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, in client.OrderInput) (*models.Order, error)
}

type Wizard struct {
	step     Step
	items    []models.CartItem
	taxRate  decimal.Decimal
	shipping models.ShippingAddress
	payment  string
	orders   OrderPlacer
	validate *validator.Validate
}

func NewWizard(items []models.CartItem, taxRate decimal.Decimal, orders OrderPlacer) *Wizard {
	return &Wizard{
		items:    items,
		taxRate:  taxRate,
		payment:  PaymentCard,
		orders:   orders,
		validate: validator.New(),
	}
}

func (w *Wizard) Step() Step {
	return w.step
}

// Empty reports whether the cart has nothing to check out.
func (w *Wizard) Empty() bool {
	return len(pricing.CartLines(w.items)) == 0
}

func (w *Wizard) Summary() pricing.Summary {
	return pricing.Summarize(pricing.CartLines(w.items), w.taxRate)
}

func (w *Wizard) Shipping() models.ShippingAddress {
	return w.shipping
}

func (w *Wizard) SetShipping(addr models.ShippingAddress) {
	w.shipping = addr
}

func (w *Wizard) PaymentMethod() string {
	return w.payment
}

func (w *Wizard) SetPaymentMethod(method string) error {
	if method != PaymentCard && method != PaymentPayPal {
		return apperr.Newf(apperr.Validation, "unsupported payment method %q", method)
	}
	w.payment = method
	return nil
}

// Next moves forward one step after validating the current one. Review has
// no next step; use Submit.
func (w *Wizard) Next() error {
	if w.Empty() {
		return apperr.New(apperr.Validation, "cart is empty")
	}
	switch w.step {
	case StepShipping:
		if err := w.validate.Struct(w.shipping); err != nil {
			return apperr.Wrap(apperr.Validation, err, "invalid shipping address")
		}
		w.step = StepPayment
	case StepPayment:
		w.step = StepReview
	default:
		return apperr.New(apperr.Validation, "already on review")
	}
	return nil
}

func (w *Wizard) Back() {
	if w.step > StepShipping {
		w.step--
	}
}

func (w *Wizard) order() client.OrderInput {
	sum := w.Summary()
	in := client.OrderInput{
		Status:          models.OrderStatusPending,
		Subtotal:        sum.Subtotal,
		Tax:             sum.Tax,
		Total:           sum.Total,
		ShippingAddress: w.shipping,
		PaymentMethod:   w.payment,
	}
	for _, it := range w.items {
		if it.Product == nil {
			continue
		}
		in.OrderItems = append(in.OrderItems, client.OrderItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Product.EffectivePrice(),
		})
	}
	return in
}

// Submit places the order from the review step. Any failure other than an
// expired session leaves the wizard on review and returns the error.
func (w *Wizard) Submit(ctx context.Context) (Outcome, *models.Order, error) {
	if w.step != StepReview {
		return StayOnReview, nil, apperr.Newf(apperr.Validation, "cannot submit from %s", w.step)
	}
	if w.Empty() {
		return StayOnReview, nil, apperr.New(apperr.Validation, "cart is empty")
	}
	order, err := w.orders.CreateOrder(ctx, w.order())
	if err != nil {
		if client.IsUnauthorized(err) {
			return LoginRedirect, nil, err
		}
		return StayOnReview, nil, err
	}
	w.items = nil
	return NavigateProfile, order, nil
}
