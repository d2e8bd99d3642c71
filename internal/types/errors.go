package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrStoreUnavailable is matched by every error returned from the alert store
var ErrStoreUnavailable = errors.New("alert store unavailable")

// ErrAlertNotFound is returned when deleting an alert the chat does not own
var ErrAlertNotFound = errors.New("alert not found")

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// NewStoreError wraps err, returning nil for a nil err
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

type OracleErrorKind string

const (
	// OracleNetwork covers transport failures, timeouts and non-2xx statuses
	OracleNetwork OracleErrorKind = "network"
	// OracleUpstream covers error envelopes and unusable payloads
	OracleUpstream OracleErrorKind = "upstream"
)

type OracleError struct {
	Chain  Chain
	Kind   OracleErrorKind
	Reason string
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("fee oracle %s error for %s: %s", e.Kind, e.Chain, e.Reason)
}

type DeliveryError struct {
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to chat %d failed: %v", e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ConfigError is fatal: the process refuses to start
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Key, e.Reason)
}
