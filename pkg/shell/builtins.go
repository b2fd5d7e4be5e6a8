package shell

import (
	"os"
	"strings"
)

const headLines = 10

// Builtins returns a registry holding the fixed command set.
func Builtins() *Registry {
	r := NewRegistry()
	for _, cmd := range []Command{
		{Name: "ls", Description: "List entries of the current directory", Run: runList},
		{Name: "cd", Description: "Change the current directory", Run: runChangeDir},
		{Name: "uniq", Description: "Print the distinct lines of a file in first-seen order", Run: runUnique},
		{Name: "head", Description: "Print the first 10 lines of a file", Run: runHead},
		{Name: "history", Description: "Print the commands submitted in this session", Run: runHistory},
		{Name: "exit", Description: "End the session", Run: runExit},
	} {
		// names above are distinct and every handler is set
		_ = r.Register(cmd)
	}
	return r
}

// runList prints names in directory order, unsorted.
func runList(env *Env, _ []string) (string, error) {
	dir, err := os.Open(env.Session.Cwd())
	if err != nil {
		return "", err
	}
	defer dir.Close()

	names, err := dir.Readdirnames(-1)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return strings.Join(names, "\n") + "\n", nil
}

func runChangeDir(env *Env, args []string) (string, error) {
	if len(args) == 0 {
		return "", &ArgumentError{What: "path"}
	}
	target, err := env.Resolver.ResolveDir(env.Session.Cwd(), args[0])
	if err != nil {
		return "", &NotFoundError{Arg: args[0], Err: err}
	}
	env.Session.SetCwd(target)
	return "", nil
}

func runUnique(env *Env, args []string) (string, error) {
	lines, err := readLines(env, args)
	if err != nil {
		return "", err
	}
	return strings.Join(uniqueLines(lines), ""), nil
}

func runHead(env *Env, args []string) (string, error) {
	lines, err := readLines(env, args)
	if err != nil {
		return "", err
	}
	if len(lines) > headLines {
		lines = lines[:headLines]
	}
	return strings.Join(lines, ""), nil
}

func runHistory(env *Env, _ []string) (string, error) {
	history := env.Session.History()
	if len(history) == 0 {
		return "", nil
	}
	return strings.Join(history, "\n") + "\n", nil
}

func runExit(env *Env, _ []string) (string, error) {
	env.RequestExit()
	return "", nil
}

func readLines(env *Env, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, &ArgumentError{What: "file"}
	}
	path, err := env.Resolver.ResolveFile(env.Session.Cwd(), args[0])
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitLines(string(data)), nil
}

// splitLines splits after each newline, keeping terminators so output can
// be reassembled verbatim.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// uniqueLines drops every repeat of a line, not only adjacent ones.
func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
