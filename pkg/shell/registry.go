package shell

import (
	"fmt"
	"sort"

	"github.com/sameehj/vshell/pkg/session"
	"github.com/sameehj/vshell/pkg/vfs"
)

// Env is what a handler may read and change while it runs.
type Env struct {
	Session  *session.Session
	Resolver *vfs.Resolver

	exit bool
}

// RequestExit marks the session for termination once the command returns.
func (e *Env) RequestExit() {
	e.exit = true
}

// Handler runs a built-in. A non-nil error becomes the command's error text.
type Handler func(env *Env, args []string) (string, error)

type Command struct {
	Name        string
	Description string
	Run         Handler
}

// Registry maps command names to handlers.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Run == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}
	if _, ok := r.commands[cmd.Name]; ok {
		return fmt.Errorf("command already registered: %s", cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// List returns commands sorted by name.
func (r *Registry) List() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
