package pairing

import "errors"

var (
	// ErrInvalidPhoneNumber indicates the phone number is absent or fails
	// E.164-like validation. Issuance has no side effect in this case.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	// ErrCodeNotFound indicates no pending record exists for the code.
	ErrCodeNotFound = errors.New("linking code not found")
	// ErrCodeExpired indicates the code's lifetime elapsed.
	ErrCodeExpired = errors.New("linking code expired")
	// ErrAttemptsExhausted indicates the attempt ceiling was reached.
	ErrAttemptsExhausted = errors.New("linking code attempts exhausted")
	// ErrIssuanceDisabled indicates the requested issuance path does not
	// match the deployment's pairing mode.
	ErrIssuanceDisabled = errors.New("issuance disabled in this pairing mode")
)
