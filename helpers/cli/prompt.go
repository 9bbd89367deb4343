// Package cli runs line oriented consoles: interactive prompt on a terminal,
// line by line script otherwise.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

// MainLoop blocks until stdin is exhausted or interrupt signal.
// onSignal is called once before exit, may be nil.
func MainLoop(tag string, exec func(line string), complete func(d prompt.Document) []prompt.Suggest, onSignal func()) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-signalCh
		if onSignal != nil {
			onSignal()
		}
		os.Exit(1)
	}()

	run(tag, os.Stdin, exec, complete)
}

func run(tag string, in *os.File, exec func(line string), complete func(d prompt.Document) []prompt.Suggest) {
	if isatty.IsTerminal(in.Fd()) {
		prompt.New(exec, complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	RunScript(in, exec)
}

// RunScript feeds every non-empty line of r to exec.
func RunScript(r io.Reader, exec func(line string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		exec(line)
	}
}

// Suggest filters suggestions by the word before cursor.
func Suggest(d prompt.Document, all []prompt.Suggest) []prompt.Suggest {
	return prompt.FilterHasPrefix(all, d.GetWordBeforeCursor(), true)
}
