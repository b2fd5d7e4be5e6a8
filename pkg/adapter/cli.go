package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sameehj/vshell/pkg/shell"
)

// CLIAdapter is a line-oriented front-end: it prints the prompt, reads one
// line, executes it and renders the result.
type CLIAdapter struct {
	shell      *shell.Shell
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	showPrompt bool
}

func NewCLIAdapter(sh *shell.Shell, in io.Reader, out, errOut io.Writer) *CLIAdapter {
	return &CLIAdapter{shell: sh, in: in, out: out, errOut: errOut, showPrompt: true}
}

// SetShowPrompt controls prompt rendering; piped input usually disables it.
func (a *CLIAdapter) SetShowPrompt(show bool) {
	a.showPrompt = show
}

func (a *CLIAdapter) Start(ctx context.Context) error {
	if a.shell.Exited() {
		return nil
	}
	scanner := bufio.NewScanner(a.in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.showPrompt {
			fmt.Fprint(a.out, a.shell.Prompt())
		}
		if !scanner.Scan() {
			if a.showPrompt {
				fmt.Fprintln(a.out)
			}
			return scanner.Err()
		}
		res := a.shell.Execute(scanner.Text())
		WriteResult(a.out, a.errOut, res)
		if res.Exit {
			return nil
		}
	}
}

// WriteResult prints output to out and error text to errOut, each
// terminated by a newline.
func WriteResult(out, errOut io.Writer, res shell.Result) {
	writeLine(out, res.Output)
	writeLine(errOut, res.Error)
}

func writeLine(w io.Writer, text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	fmt.Fprint(w, text)
}
