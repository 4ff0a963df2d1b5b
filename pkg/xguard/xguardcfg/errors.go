package xguardcfg

import "errors"

var (
	// ErrUnsupportedFormat is returned by Load for a Format other than
	// FormatYAML or FormatJSON.
	ErrUnsupportedFormat = errors.New("xguardcfg: unsupported format")

	// ErrLoadFailed wraps a failure parsing the supplied document.
	ErrLoadFailed = errors.New("xguardcfg: load failed")

	// ErrUnmarshalFailed wraps a failure decoding the parsed document
	// into a Config.
	ErrUnmarshalFailed = errors.New("xguardcfg: unmarshal failed")

	// ErrInvalidValue is returned by Config.validate for a value outside
	// its documented range.
	ErrInvalidValue = errors.New("xguardcfg: invalid value")
)
