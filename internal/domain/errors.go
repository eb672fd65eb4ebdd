package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("conflict")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	ErrInvalidTransition         = errors.New("invalid submission status transition")
	ErrMalformedReference        = errors.New("malformed post reference")
	ErrMetricsFetchFailure       = errors.New("metrics fetch failure")
	ErrLedgerCreditFailure       = errors.New("ledger credit failure")
	ErrDuplicateActiveSubmission = errors.New("duplicate active submission")
	ErrTaskClosed                = errors.New("task is not accepting submissions")
	ErrTaskFull                  = errors.New("task influencer capacity reached")
	ErrCredentialsMissing        = errors.New("platform credentials missing")
	ErrPaymentAlreadyRecorded    = errors.New("payment already recorded")

	ErrInvalidEnvelope       = errors.New("invalid event envelope")
	ErrUnsupportedEventType  = errors.New("unsupported event type")
	ErrUnsupportedEventClass = errors.New("unsupported event class")
)
