package errs

import (
	"errors"
)

// Kind classifies an error into the caller-visible taxonomy.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDuplicate
	KindInsufficientBalance
	KindInsufficientAllowance
	KindInsufficientShares
	KindInsufficientPayment
	KindInsufficientLiquidity
	KindSlippageExceeded
	KindSupplyExceeded
	KindArithmeticOverflow
	KindAuthorization
	KindUnknownAsset
	KindEmptyPool
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindDuplicate:
		return "DuplicateError"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindInsufficientAllowance:
		return "InsufficientAllowance"
	case KindInsufficientShares:
		return "InsufficientShares"
	case KindInsufficientPayment:
		return "InsufficientPayment"
	case KindInsufficientLiquidity:
		return "InsufficientLiquidity"
	case KindSlippageExceeded:
		return "SlippageExceeded"
	case KindSupplyExceeded:
		return "SupplyExceeded"
	case KindArithmeticOverflow:
		return "ArithmeticOverflow"
	case KindAuthorization:
		return "AuthorizationError"
	case KindUnknownAsset:
		return "UnknownAsset"
	case KindEmptyPool:
		return "EmptyPool"
	default:
		return "Internal"
	}
}

// Error is a sentinel carrying its taxonomy kind. Operations wrap these with
// fmt.Errorf("...: %w", ErrX) so errors.Is and KindOf both work on the result.
type Error struct {
	Kind Kind
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

func newError(kind Kind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

var (
	ErrInvalidAmount = newError(KindValidation, "invalid amount")
	ErrInvalidInput  = newError(KindValidation, "invalid input")

	ErrNotFound         = newError(KindNotFound, "not found")
	ErrUnknownAsset     = newError(KindUnknownAsset, "unknown asset")
	ErrEmptyPool        = newError(KindEmptyPool, "empty pool")
	ErrUnauthorized     = newError(KindAuthorization, "unauthorized")
	ErrDuplicateSymbol  = newError(KindDuplicate, "duplicate symbol")
	ErrAlreadyExists    = newError(KindDuplicate, "already exists")
	ErrDuplicateRequest = newError(KindDuplicate, "duplicate request")

	ErrInsufficientBalance   = newError(KindInsufficientBalance, "insufficient balance")
	ErrInsufficientAllowance = newError(KindInsufficientAllowance, "insufficient allowance")
	ErrInsufficientShares    = newError(KindInsufficientShares, "insufficient shares")
	ErrInsufficientPayment   = newError(KindInsufficientPayment, "insufficient payment")
	ErrInsufficientLiquidity = newError(KindInsufficientLiquidity, "insufficient liquidity")

	ErrSlippageExceeded   = newError(KindSlippageExceeded, "insufficient output amount")
	ErrSupplyExceeded     = newError(KindSupplyExceeded, "exceeds total supply")
	ErrArithmeticOverflow = newError(KindArithmeticOverflow, "arithmetic overflow")
)

// KindOf returns the taxonomy kind of err, or KindInternal when err does not
// wrap one of the sentinels above.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
