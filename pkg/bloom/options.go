package bloom

import "log/slog"

// DefaultBitSize is the default filter width (2^23 bits, per spec).
const DefaultBitSize = 1 << 23

// DefaultHashFunctions is the default number of double-hash derived
// positions per key.
const DefaultHashFunctions = 3

// DefaultKeyPrefix is the default Redis key prefix; the hash backing a
// given cache-name's filter lives at Prefix+cacheName.
const DefaultKeyPrefix = "bf:"

// Options configures a Filter.
type Options struct {
	// BitSize is the filter width m. Default DefaultBitSize (2^23).
	BitSize int64

	// HashFunctions is the number k of derived bit positions per key.
	// Default DefaultHashFunctions (3).
	HashFunctions int

	// KeyPrefix prefixes the Redis hash key for a cache-name's filter
	// state. Default DefaultKeyPrefix ("bf:").
	KeyPrefix string

	// Logger receives warnings when a Redis operation fails. Defaults
	// to slog.Default(). Set to nil to disable logging.
	Logger *slog.Logger
}

// Option configures a Filter at construction time.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		BitSize:       DefaultBitSize,
		HashFunctions: DefaultHashFunctions,
		KeyPrefix:     DefaultKeyPrefix,
		Logger:        slog.Default(),
	}
}

// WithBitSize overrides the filter width m.
func WithBitSize(m int64) Option {
	return func(o *Options) { o.BitSize = m }
}

// WithHashFunctions overrides the hash function count k.
func WithHashFunctions(k int) Option {
	return func(o *Options) { o.HashFunctions = k }
}

// WithKeyPrefix overrides the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) { o.KeyPrefix = prefix }
}

// WithLogger overrides the logger. Passing nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func (o *Options) validate() error {
	if o.BitSize <= 0 {
		return ErrInvalidBitSize
	}
	if o.HashFunctions <= 0 {
		return ErrInvalidHashFunctions
	}
	return nil
}
