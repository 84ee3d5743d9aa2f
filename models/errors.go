package models

import "errors"

// Error kinds. Every error returned by this module wraps exactly one of them
// so callers can classify failures with errors.Is.
var (
	ErrConfig  = errors.New("config error")
	ErrCrypto  = errors.New("crypto error")
	ErrNetwork = errors.New("network error")
	ErrDecode  = errors.New("decode error")
	ErrIO      = errors.New("io error")
)

// IsFatal reports whether err must abort a commit or audit run. Only decode
// failures are recoverable: the offending transaction is skipped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrDecode)
}
