// Package plugin defines the module lifecycle used to load codecs at startup.
package plugin

import (
	"firestige.xyz/aptx/internal/config"
	"firestige.xyz/aptx/pkg/codec"
)

// Module is a loadable unit that registers codecs on Init and removes them
// on Close.
type Module interface {
	Name() string
	Type() string
	Init(cfg *config.GlobalConfig, reg *codec.Registry) error
	Close() error
}
