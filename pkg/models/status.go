package models

import (
	"fmt"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusBadges[status]; !ok {
		return "", fmt.Errorf("invalid order status %q", s)
	}
	return status, nil
}

type BadgeColor string

const (
	BadgeYellow BadgeColor = "yellow"
	BadgePurple BadgeColor = "purple"
	BadgeBlue   BadgeColor = "blue"
	BadgeGreen  BadgeColor = "green"
	BadgeRed    BadgeColor = "red"
)

// statusBadges must have an entry for every OrderStatus.
var statusBadges = map[OrderStatus]BadgeColor{
	OrderStatusPending:    BadgeYellow,
	OrderStatusProcessing: BadgePurple,
	OrderStatusShipped:    BadgeBlue,
	OrderStatusDelivered:  BadgeGreen,
	OrderStatusCancelled:  BadgeRed,
}

func (s OrderStatus) Badge() BadgeColor {
	return statusBadges[s]
}

// Label is the capitalised form shown on order rows.
func (s OrderStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}
