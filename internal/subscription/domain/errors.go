package domain

import "errors"

var (
	ErrInvalidSubscription     = errors.New("invalid subscription")
	ErrInvalidCustomer         = errors.New("invalid customer")
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrAlreadyCanceled         = errors.New("subscription already canceled")
	ErrMissingComponents       = errors.New("subscription requires at least one component")
	ErrInvalidComponentFeeType = errors.New("component fee type must be RATE or SLOT")
	ErrSlotQuantityRequired    = errors.New("slot components require a positive quantity")
	ErrInvalidBillingDay       = errors.New("billing day must be between 1 and 31")
)
