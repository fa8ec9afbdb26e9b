// Package plugins registers all built-in modules.
package plugins

import (
	"firestige.xyz/aptx/pkg/plugin"
	"firestige.xyz/aptx/plugins/codec/aptx"
)

func init() {
	// Register codec modules
	plugin.Register(aptx.Name, func() plugin.Module { return aptx.NewModule() })
}
