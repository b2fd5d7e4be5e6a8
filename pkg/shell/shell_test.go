package shell

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/sameehj/vshell/pkg/audit"
	"github.com/sameehj/vshell/pkg/session"
)

type recordingAuditor struct {
	records []audit.Record
	err     error
}

func (a *recordingAuditor) Append(rec audit.Record) error {
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newShell(t *testing.T) (*Shell, *recordingAuditor) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "notes.txt"), "x\ny\nx\nz\n")
	writeFile(t, filepath.Join(root, "readme.txt"), "hello\n")
	for _, d := range []string{"docs", "bin"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	aud := &recordingAuditor{}
	sh, err := StartSession(Options{
		Identity: session.Identity{User: "alice", Host: "box"},
		Root:     root,
		Audit:    aud,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	return sh, aud
}

func TestScenarioChangeDirThenUnique(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)

	if res := sh.Execute("cd a"); res.IsError() {
		t.Fatalf("cd a: %s", res.Error)
	}
	res := sh.Execute("uniq notes.txt")
	if res.IsError() {
		t.Fatalf("uniq: %s", res.Error)
	}
	if res.Output != "x\ny\nz\n" {
		t.Fatalf("expected %q, got %q", "x\ny\nz\n", res.Output)
	}
}

func TestScenarioList(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)
	if err := os.RemoveAll(filepath.Join(sh.Session().Root, "a")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	res := sh.Execute("ls")
	if res.IsError() {
		t.Fatalf("ls: %s", res.Error)
	}
	got := strings.Split(strings.TrimSuffix(res.Output, "\n"), "\n")
	sort.Strings(got)
	want := []string{"bin", "docs", "readme.txt"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestScenarioChangeDirMissing(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)
	before := sh.Session().Cwd()

	res := sh.Execute("cd missing")
	if !res.IsError() || !strings.Contains(res.Error, "missing") {
		t.Fatalf("expected error mentioning missing, got %+v", res)
	}
	if res.Error != "cd: path not found: missing" {
		t.Fatalf("unexpected error text %q", res.Error)
	}
	if sh.Session().Cwd() != before {
		t.Fatalf("cwd changed to %q", sh.Session().Cwd())
	}
}

func TestScenarioUnknownCommand(t *testing.T) {
	t.Parallel()
	sh, aud := newShell(t)

	res := sh.Execute("foo bar")
	if res.Error != "command not found: foo" {
		t.Fatalf("unexpected result %+v", res)
	}
	h := sh.Session().History()
	if len(h) != 1 || h[0] != "foo bar" {
		t.Fatalf("expected history [foo bar], got %v", h)
	}
	if len(aud.records) != 1 || aud.records[0].Command != "foo bar" {
		t.Fatalf("expected unknown command to be audited, got %+v", aud.records)
	}
}

func TestHistoryFidelity(t *testing.T) {
	t.Parallel()
	sh, aud := newShell(t)

	lines := []string{"ls", "  cd   a ", "cd nowhere", "head notes.txt", "uniq", "bogus", "cd ..", "history"}
	for i, line := range lines {
		sh.Execute(line)
		if got := len(sh.Session().History()); got != i+1 {
			t.Fatalf("after %d submissions history has %d entries", i+1, got)
		}
	}
	h := sh.Session().History()
	for i := range lines {
		if h[i] != lines[i] {
			t.Fatalf("history[%d] = %q, want %q", i, h[i], lines[i])
		}
	}
	if len(aud.records) != len(lines) {
		t.Fatalf("expected %d audit records, got %d", len(lines), len(aud.records))
	}
	rec := aud.records[0]
	if rec.User != "alice" || rec.Host != "box" || rec.Command != "ls" {
		t.Fatalf("unexpected audit record %+v", rec)
	}
}

func TestBlankInputIgnored(t *testing.T) {
	t.Parallel()
	sh, aud := newShell(t)

	for _, line := range []string{"", " ", "\t", " \t  "} {
		res := sh.Execute(line)
		if res.Output != "" || res.IsError() || res.Exit {
			t.Fatalf("blank %q produced %+v", line, res)
		}
	}
	if len(sh.Session().History()) != 0 {
		t.Fatalf("blank input reached history")
	}
	if len(aud.records) != 0 {
		t.Fatalf("blank input reached audit log")
	}
}

func TestChangeDirParentNeverEscapes(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)
	root := sh.Session().Root

	for i := 0; i < 10; i++ {
		if res := sh.Execute("cd .."); res.IsError() {
			t.Fatalf("cd ..: %s", res.Error)
		}
		if sh.Session().Cwd() != root {
			t.Fatalf("escaped root: %q", sh.Session().Cwd())
		}
	}

	sh.Execute("cd a")
	sh.Execute("cd ..")
	if sh.Session().Cwd() != root {
		t.Fatalf("expected return to root, got %q", sh.Session().Cwd())
	}

	res := sh.Execute("cd ../..")
	if !res.IsError() || sh.Session().Cwd() != root {
		t.Fatalf("expected escape to be refused, got %+v cwd=%q", res, sh.Session().Cwd())
	}
}

func TestChangeDirErrors(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)

	res := sh.Execute("cd")
	if res.Error != "cd: path not specified" {
		t.Fatalf("unexpected error %q", res.Error)
	}

	res = sh.Execute("cd readme.txt")
	if res.Error != "cd: path not found: readme.txt" {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestHeadLimits(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)
	root := sh.Session().Root

	var long strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&long, "line %d\n", i)
	}
	writeFile(t, filepath.Join(root, "long.txt"), long.String())
	writeFile(t, filepath.Join(root, "short.txt"), "one\ntwo\nthree")
	writeFile(t, filepath.Join(root, "empty.txt"), "")

	res := sh.Execute("head long.txt")
	if res.IsError() {
		t.Fatalf("head: %s", res.Error)
	}
	if n := strings.Count(res.Output, "\n"); n != 10 {
		t.Fatalf("expected 10 lines, got %d", n)
	}
	if !strings.HasPrefix(res.Output, "line 0\n") || !strings.HasSuffix(res.Output, "line 9\n") {
		t.Fatalf("unexpected head output %q", res.Output)
	}

	if res := sh.Execute("head short.txt"); res.Output != "one\ntwo\nthree" {
		t.Fatalf("short file not returned verbatim: %q", res.Output)
	}
	if res := sh.Execute("head empty.txt"); res.Output != "" || res.IsError() {
		t.Fatalf("unexpected empty-file result %+v", res)
	}
}

func TestFileCommandErrors(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)

	cases := []struct {
		line     string
		contains string
	}{
		{"head", "head: file not specified"},
		{"uniq", "uniq: file not specified"},
		{"head nope.txt", "nope.txt"},
		{"uniq nope.txt", "nope.txt"},
		{"head a", "is a directory"},
		{"uniq ../../etc/passwd", "escapes sandbox"},
	}
	for _, tc := range cases {
		res := sh.Execute(tc.line)
		if !res.IsError() || !strings.Contains(res.Error, tc.contains) {
			t.Errorf("%q: expected error containing %q, got %+v", tc.line, tc.contains, res)
		}
	}
}

func TestUniqueIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"a\n",
		"x\ny\nx\nz\n",
		"b\na\nb\na\nc",
		"x\nx",
		"\n\n\nq\n\nq\n",
	}
	for _, in := range inputs {
		once := strings.Join(uniqueLines(splitLines(in)), "")
		twice := strings.Join(uniqueLines(splitLines(once)), "")
		if once != twice {
			t.Errorf("uniq not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)

	sh.Execute("ls")
	sh.Execute("nope")
	res := sh.Execute("history")
	if res.Output != "ls\nnope\nhistory\n" {
		t.Fatalf("unexpected history output %q", res.Output)
	}
}

func TestExitCommand(t *testing.T) {
	t.Parallel()
	sh, aud := newShell(t)

	res := sh.Execute("exit")
	if !res.Exit || res.IsError() || !sh.Exited() {
		t.Fatalf("expected exit result, got %+v", res)
	}
	if len(aud.records) != 1 || len(sh.Session().History()) != 1 {
		t.Fatalf("exit should follow the generic history and audit flow")
	}
}

func TestAuditFailureKeepsOutput(t *testing.T) {
	t.Parallel()
	sh, aud := newShell(t)
	aud.err = errors.New("disk full")

	res := sh.Execute("history")
	if res.Output != "history\n" {
		t.Fatalf("command output lost: %q", res.Output)
	}
	if !strings.Contains(res.Error, "disk full") {
		t.Fatalf("expected audit error to be reported, got %q", res.Error)
	}
	if len(sh.Session().History()) != 1 {
		t.Fatalf("history should still record the command")
	}
}

func TestPrompt(t *testing.T) {
	t.Parallel()
	sh, _ := newShell(t)

	root := sh.Session().Root
	if got, want := sh.Prompt(), "alice@box: "+root+"$ "; got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
	sh.Execute("cd a")
	if got, want := sh.Prompt(), "alice@box: "+filepath.Join(root, "a")+"$ "; got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	name, args, ok := Parse("  head   my file.txt ")
	if !ok || name != "head" || len(args) != 2 || args[0] != "my" || args[1] != "file.txt" {
		t.Fatalf("unexpected parse: %q %v %v", name, args, ok)
	}
	if _, _, ok := Parse("   "); ok {
		t.Fatalf("blank line should not parse")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()
	r := Builtins()
	if err := r.Register(Command{Name: "ls", Run: runList}); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	names := make([]string, 0)
	for _, cmd := range r.List() {
		names = append(names, cmd.Name)
	}
	if strings.Join(names, ",") != "cd,exit,head,history,ls,uniq" {
		t.Fatalf("unexpected builtins %v", names)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	t.Parallel()
	if !errors.Is(&ArgumentError{What: "path"}, ErrMissingArgument) {
		t.Fatalf("ArgumentError should unwrap to ErrMissingArgument")
	}
	if !errors.Is(&UnknownCommandError{Name: "x"}, ErrUnknownCommand) {
		t.Fatalf("UnknownCommandError should unwrap to ErrUnknownCommand")
	}
}
