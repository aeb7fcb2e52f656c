package models

import (
	"fmt"
	"strings"
)

// OrderStatus is the numeric status code shared by orders and sale orders.
type OrderStatus int

const (
	OrderStatusNew        OrderStatus = 1
	OrderStatusPending    OrderStatus = 2
	OrderStatusCanceled   OrderStatus = 3
	OrderStatusPaid       OrderStatus = 4
	OrderStatusFailed     OrderStatus = 5
	OrderStatusInProgress OrderStatus = 6
	OrderStatusDelivered  OrderStatus = 7
	OrderStatusClosed     OrderStatus = 8
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusNew:        "NEW",
	OrderStatusPending:    "PENDING",
	OrderStatusCanceled:   "CANCELED",
	OrderStatusPaid:       "PAID",
	OrderStatusFailed:     "FAILED",
	OrderStatusInProgress: "IN_PROGRESS",
	OrderStatusDelivered:  "DELIVERED",
	OrderStatusClosed:     "CLOSED",
}

func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("OrderStatus(%d)", int(s))
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// ParseOrderStatus accepts the symbolic name in any case.
func ParseOrderStatus(name string) (OrderStatus, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for code, n := range orderStatusNames {
		if n == upper {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", name)
}

// TransactionStatus is the payment-side lifecycle of one payment attempt.
type TransactionStatus string

const (
	TransactionCreated   TransactionStatus = "created"
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionCanceled  TransactionStatus = "canceled"
	TransactionFailed    TransactionStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodMoney         PaymentMethod = "money"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodDigitalWallet PaymentMethod = "digital_wallet"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodMoney, PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodDigitalWallet:
		return true
	}
	return false
}
