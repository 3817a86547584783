package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/timeros/appload/go/kernel"
	"github.com/timeros/appload/go/loader"
)

func TestPrintErrorStack(t *testing.T) {
	var buf bytes.Buffer
	err := errors.Wrap(errors.WithStack(loader.ErrNoLoadable), "load hello")
	PrintError(&buf, err)
	out := buf.String()
	if !strings.Contains(out, "Error: load hello: no loadable segment") {
		t.Errorf("missing message:\n%s", out)
	}
	if !strings.Contains(out, "TestPrintErrorStack()") {
		t.Errorf("missing stack frame:\n%s", out)
	}
}

func TestPrintErrorBoot(t *testing.T) {
	var buf bytes.Buffer
	err := kernel.BootError{&kernel.LoadError{App: 2, Name: "sh", Err: loader.ErrNoLoadable}}
	PrintError(&buf, err)
	if !strings.Contains(buf.String(), "  app 2 (sh): no loadable segment") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestKernelCmdFlags(t *testing.T) {
	var stderr bytes.Buffer
	c := NewKernelCmd("test")
	c.Stderr = &stderr
	c.MinArgs = 1
	var got []string
	c.Main = func(args []string) error {
		got = args
		return nil
	}
	if code := c.Run([]string{"test", "-v", "-pages", "64", "-tasks", "3", "-guard", "4", "img"}); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if len(got) != 1 || got[0] != "img" {
		t.Errorf("args = %v", got)
	}
	cfg := c.Config
	if !cfg.Verbose || cfg.PhysPages != 64 || cfg.MaxTasks != 3 || cfg.GuardPages != 4 || cfg.MaxApps != 32 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestKernelCmdErrors(t *testing.T) {
	var stderr bytes.Buffer
	c := NewKernelCmd("test")
	c.Stderr = &stderr
	c.ArgUsage = "<image>"
	c.MinArgs = 1
	c.Main = func(args []string) error { return errors.New("boom") }
	if code := c.Run([]string{"test"}); code != 2 {
		t.Errorf("missing args: exit %d", code)
	}
	if !strings.Contains(stderr.String(), "Usage: test [options] <image>") {
		t.Errorf("usage:\n%s", stderr.String())
	}

	stderr.Reset()
	c = NewKernelCmd("test")
	c.Stderr = &stderr
	c.Main = func(args []string) error { return errors.New("boom") }
	if code := c.Run([]string{"test"}); code != 1 {
		t.Errorf("failing main: exit %d", code)
	}
	if !strings.Contains(stderr.String(), "Error: boom") {
		t.Errorf("stderr:\n%s", stderr.String())
	}
}
