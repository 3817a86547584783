package kernel

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrTooManyTasks = errors.New("task table full")
	ErrBootstrap    = errors.New("kernel bootstrap failed")
	ErrNoTask       = errors.New("no such task")
)

type bootstrapError struct {
	err error
}

func (b *bootstrapError) Error() string        { return fmt.Sprintf("%v: %v", ErrBootstrap, b.err) }
func (b *bootstrapError) Is(target error) bool { return target == ErrBootstrap }
func (b *bootstrapError) Unwrap() error        { return b.err }
func (b *bootstrapError) Cause() error         { return b.err }

// LoadError is one application that failed to become a task.
type LoadError struct {
	App  int
	Name string
	Err  error
}

func (l *LoadError) Error() string {
	return fmt.Sprintf("app %d (%s): %v", l.App, l.Name, l.Err)
}

func (l *LoadError) Unwrap() error { return l.Err }

// BootError collects every application Boot could not load.
type BootError []*LoadError

func (b BootError) Error() string {
	msgs := make([]string, len(b))
	for i, l := range b {
		msgs[i] = l.Error()
	}
	return fmt.Sprintf("%d app(s) failed to load: %s", len(b), strings.Join(msgs, "; "))
}
