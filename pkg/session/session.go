package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identity labels the user and host shown in prompts and audit records.
type Identity struct {
	User string `json:"user"`
	Host string `json:"host"`
}

// Session is the mutable state of one interactive session. It is not safe
// for concurrent use; the interpreter that owns it serializes all access.
type Session struct {
	ID        uuid.UUID
	Identity  Identity
	Root      string
	CreatedAt time.Time

	cwd     string
	history []string
}

// New starts a session located at the sandbox root with empty history.
func New(identity Identity, root string) *Session {
	return &Session{
		ID:        uuid.New(),
		Identity:  identity,
		Root:      root,
		CreatedAt: time.Now(),
		cwd:       root,
	}
}

func (s *Session) Cwd() string {
	return s.cwd
}

func (s *Session) SetCwd(path string) {
	s.cwd = path
}

// Record appends a submitted command line to history verbatim.
func (s *Session) Record(line string) {
	s.history = append(s.history, line)
}

// History returns a copy of the submitted lines in submission order.
func (s *Session) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// Prompt renders "<user>@<host>: <cwd>$ ".
func (s *Session) Prompt() string {
	return fmt.Sprintf("%s@%s: %s$ ", s.Identity.User, s.Identity.Host, s.cwd)
}
