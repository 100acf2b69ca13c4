package scenecore

import (
	"github.com/gekko3d/scenecore/internal/gpudevice"
	"github.com/gekko3d/scenecore/internal/logx"
)

// Config is the set of knobs New needs to wire up a Pipeline.
type Config struct {
	// Device is the graphics device every buffer is allocated against.
	// Required; use gpudevice.NewWGPUDevice for a real backend or
	// &gpudevice.Fake{} in tests.
	Device gpudevice.Device
	// Logger receives diagnostics (e.g. a truncated attribute stream, a
	// Consistency-kind no-op). Defaults to a no-op logger.
	Logger logx.Logger
	// Workers bounds the meshlet-build worker pool. Defaults to 1 if <= 0.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = logx.Nop{}
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}
