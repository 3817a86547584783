package main

import (
	"github.com/timeros/appload/go/cmd"

	_ "github.com/timeros/appload/go/cmd/boot"
	_ "github.com/timeros/appload/go/cmd/ls"
	_ "github.com/timeros/appload/go/cmd/mkimage"
	_ "github.com/timeros/appload/go/cmd/repl"
)

func main() { cmd.Main() }
