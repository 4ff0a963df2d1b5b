// Package xguardcfg loads the engine's configuration surface (spec
// §6's recognized options table) via koanf/v2, the same
// provider/parser composition the wider dependency set uses for
// config loading (github.com/knadh/koanf/v2 plus the rawbytes
// provider and yaml/json parsers), grounded on pkg/config/xconf's
// New/NewFromBytes pattern.
package xguardcfg
