package mpa

import "errors"

var (
	ErrFrozen               = errors.New("mpa: agreement frozen")
	ErrLocked               = errors.New("mpa: agreement locked")
	ErrUnauthorized         = errors.New("mpa: caller not authorised")
	ErrNotFound             = errors.New("mpa: agreement not found")
	ErrFactoryNotFound      = errors.New("mpa: factory not found")
	ErrFactoryExists        = errors.New("mpa: factory already deployed")
	ErrInvalidBeneficiaries = errors.New("mpa: invalid beneficiaries")
	ErrInvalidShares        = errors.New("mpa: invalid shares")
	ErrInvalidName          = errors.New("mpa: invalid name")
	ErrInvalidDescription   = errors.New("mpa: invalid description")
	ErrInvalidAmount        = errors.New("mpa: invalid amount")
	ErrInsufficientBalance  = errors.New("mpa: insufficient balance")

	errNilState = errors.New("mpa engine: state not configured")
)
