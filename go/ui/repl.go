package ui

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/shibukawa/configdir"

	"github.com/timeros/appload/go/kernel"
	"github.com/timeros/appload/go/monitor"
)

// Repl is an interactive kernel monitor.
type Repl struct {
	k   *kernel.Kernel
	rl  *readline.Instance
	ctx *monitor.Context
}

type nullCloser struct{ io.Writer }

func (n *nullCloser) Close() error { return nil }

func historyPath() string {
	configDirs := configdir.New("appload", "repl")
	cacheDir := configDirs.QueryCacheFolder()
	if err := cacheDir.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cacheDir.Path, "history")
}

func NewRepl(k *kernel.Kernel) (*Repl, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "appload> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     historyPath(),
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, err
	}
	// route kernel diagnostics through readline so the prompt is redrawn
	if k.Config().Output == os.Stderr {
		k.Config().Output = &nullCloser{rl.Stderr()}
	}
	ctx := &monitor.Context{Writer: rl.Stdout(), K: k, Color: k.Config().Color}
	return &Repl{k: k, rl: rl, ctx: ctx}, nil
}

func completer() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(monitor.Commands))
	for _, name := range monitor.Names() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func (r *Repl) setPrompt() {
	r.rl.SetPrompt(fmt.Sprintf("appload[%d]> ", len(r.k.Tasks())))
}

// Run reads commands until EOF or "exit".
func (r *Repl) Run() error {
	defer r.Close()
	r.setPrompt()
	for {
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := monitor.Run(r.ctx, line); err != nil {
			return err
		}
		r.setPrompt()
	}
}

func (r *Repl) Close() {
	r.rl.Close()
}
