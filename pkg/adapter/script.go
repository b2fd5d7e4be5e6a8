package adapter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/sameehj/vshell/pkg/shell"
)

// RunScript executes a startup script one trimmed line at a time, echoing
// each line after the prompt the way an interactive user would see it. A
// missing script is not an error. It returns true if the script ran exit.
func RunScript(sh *shell.Shell, path string, out, errOut io.Writer) (bool, error) {
	if path == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open startup script: %w", err)
	}
	defer f.Close()

	return RunLines(sh, f, out, errOut)
}

// RunLines executes every non-blank line from r.
func RunLines(sh *shell.Shell, r io.Reader, out, errOut io.Writer) (bool, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintf(out, "%s%s\n", sh.Prompt(), line)
		res := sh.Execute(line)
		WriteResult(out, errOut, res)
		if res.Exit {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read startup script: %w", err)
	}
	return false, nil
}
