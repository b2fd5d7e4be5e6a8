// Package shell interprets command lines against a sandboxed directory
// tree. A Shell owns one session: it records history, audits every accepted
// line and dispatches to the built-in handlers.
//
// Arguments are split on whitespace only. There is no quoting or escaping,
// so names containing spaces cannot be addressed.
package shell

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sameehj/vshell/pkg/audit"
	"github.com/sameehj/vshell/pkg/session"
	"github.com/sameehj/vshell/pkg/vfs"
)

// Auditor persists one record per accepted command line.
type Auditor interface {
	Append(rec audit.Record) error
}

type Options struct {
	Identity session.Identity
	// Root is the materialized sandbox directory.
	Root string
	// Audit may be nil, in which case nothing is recorded.
	Audit Auditor
	// Registry defaults to Builtins().
	Registry *Registry
	Logger   *slog.Logger
}

type Shell struct {
	sess     *session.Session
	resolver *vfs.Resolver
	audit    Auditor
	registry *Registry
	logger   *slog.Logger
	exited   bool
}

// StartSession opens the sandbox and returns a shell positioned at its root.
func StartSession(opts Options) (*Shell, error) {
	resolver, err := vfs.NewResolver(opts.Root)
	if err != nil {
		return nil, err
	}
	registry := opts.Registry
	if registry == nil {
		registry = Builtins()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sess := session.New(opts.Identity, resolver.Root())
	return &Shell{
		sess:     sess,
		resolver: resolver,
		audit:    opts.Audit,
		registry: registry,
		logger:   logger.With("session", sess.ID.String()),
	}, nil
}

func (s *Shell) Session() *session.Session {
	return s.sess
}

func (s *Shell) Resolver() *vfs.Resolver {
	return s.resolver
}

func (s *Shell) Prompt() string {
	return s.sess.Prompt()
}

// Exited reports whether an exit command has run.
func (s *Shell) Exited() bool {
	return s.exited
}

// Parse splits a line into a command name and its arguments. ok is false
// for blank input.
func Parse(line string) (name string, args []string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Execute runs one command line. Blank lines are ignored entirely. Any
// other line is added to history and audited before dispatch, whether or
// not the command turns out to exist or succeed.
func (s *Shell) Execute(line string) Result {
	name, args, ok := Parse(line)
	if !ok {
		return Result{}
	}

	s.sess.Record(line)
	auditErr := s.appendAudit(line)

	res := s.dispatch(name, args)
	if auditErr != nil {
		msg := "audit log: " + auditErr.Error()
		if res.Error != "" {
			res.Error += "\n" + msg
		} else {
			res.Error = msg
		}
	}
	if res.Exit {
		s.exited = true
	}
	return res
}

func (s *Shell) appendAudit(line string) error {
	if s.audit == nil {
		return nil
	}
	rec := audit.Record{
		User:    s.sess.Identity.User,
		Host:    s.sess.Identity.Host,
		Command: line,
	}
	if err := s.audit.Append(rec); err != nil {
		s.logger.Warn("audit_append_failed", "command", line, "error", err)
		return err
	}
	return nil
}

func (s *Shell) dispatch(name string, args []string) Result {
	cmd, ok := s.registry.Get(name)
	if !ok {
		err := &UnknownCommandError{Name: name}
		s.logger.Debug("command_executed", "command", name, "error", err)
		return Result{Error: err.Error()}
	}

	env := &Env{Session: s.sess, Resolver: s.resolver}
	out, err := cmd.Run(env, args)
	if err != nil {
		s.logger.Debug("command_executed", "command", name, "cwd", s.resolver.Display(s.sess.Cwd()), "error", err)
		return Result{Error: fmt.Sprintf("%s: %v", name, err), Exit: env.exit}
	}
	s.logger.Debug("command_executed", "command", name, "cwd", s.resolver.Display(s.sess.Cwd()))
	return Result{Output: out, Exit: env.exit}
}
