package domain

import "errors"

var (
	ErrZeroDelta          = errors.New("slot delta must not be zero")
	ErrInsufficientSlots  = errors.New("decrease would drive active slots below zero")
	ErrComponentNotSeated = errors.New("component is not seat based")
	ErrInvalidComponent   = errors.New("invalid component")
	ErrComponentNotFound  = errors.New("component not found")
)
