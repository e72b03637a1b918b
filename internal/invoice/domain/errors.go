package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid or missing organization")
	ErrInvalidInvoice      = errors.New("invalid invoice id")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrInvoiceImmutable    = errors.New("invoice is finalized or void and can no longer change")
	ErrUnknownProvider     = errors.New("unknown invoicing provider")
	ErrIssueNotEligible    = errors.New("invoice is not eligible for issuance")
)
