package models

import (
	"fmt"
	"io"
	"os"
)

const (
	// MaxApps bounds the embedded application table.
	MaxApps = 32
	// MaxTasks bounds the number of live tasks.
	MaxTasks = 32
	// 32MiB of simulated RAM
	DefaultPhysPages = 8192
	// unmapped pages between the loaded image and the user stack
	DefaultGuardPages = 2
)

type Config struct {
	Color   bool
	Verbose bool

	MaxApps    int
	MaxTasks   int
	PhysPages  int
	GuardPages uint64

	Output io.Writer
}

// Init fills unset fields with defaults.
func (c *Config) Init() *Config {
	if c.MaxApps == 0 {
		c.MaxApps = MaxApps
	}
	if c.MaxTasks == 0 {
		c.MaxTasks = MaxTasks
	}
	if c.PhysPages == 0 {
		c.PhysPages = DefaultPhysPages
	}
	if c.GuardPages == 0 {
		c.GuardPages = DefaultGuardPages
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	return c
}

func (c *Config) Printf(format string, a ...interface{}) {
	if c.Output != nil {
		fmt.Fprintf(c.Output, format, a...)
	}
}

// Debugf prints only in verbose mode.
func (c *Config) Debugf(format string, a ...interface{}) {
	if c.Verbose {
		c.Printf(format, a...)
	}
}
