// Package audit persists one record per accepted command line to an XML
// container on disk. The container is rewritten in full on every append and
// replaced atomically, so it parses cleanly after any successful append.
package audit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimeLayout is the timestamp format stored in the log.
const TimeLayout = "2006-01-02 15:04:05"

// Record is a single audited command.
type Record struct {
	Time    time.Time
	User    string
	Host    string
	Command string
}

type action struct {
	Timestamp string `xml:"timestamp,attr"`
	User      string `xml:"user,attr"`
	Hostname  string `xml:"hostname,attr"`
	Command   string `xml:"command,attr"`
}

type container struct {
	XMLName xml.Name `xml:"log"`
	Actions []action `xml:"action"`
}

func toAction(r Record) action {
	return action{
		Timestamp: r.Time.Local().Format(TimeLayout),
		User:      r.User,
		Hostname:  r.Host,
		Command:   r.Command,
	}
}

func fromAction(a action) (Record, error) {
	ts, err := time.ParseInLocation(TimeLayout, a.Timestamp, time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp %q: %w", a.Timestamp, err)
	}
	return Record{Time: ts, User: a.User, Host: a.Hostname, Command: a.Command}, nil
}

// Log appends records to the XML file at path.
type Log struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

func New(path string) *Log {
	return &Log{path: path, now: time.Now}
}

func (l *Log) Path() string {
	return l.path
}

// SetClock replaces the time source used to stamp records.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Append stamps rec if it carries no time, adds it to the container and
// rewrites the file. A missing or empty file starts a fresh container.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Time.IsZero() {
		rec.Time = l.now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create audit log dir: %w", err)
	}
	unlock, err := lockFile(l.path + ".lock")
	if err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlock()

	doc, err := readContainer(l.path)
	if err != nil {
		return err
	}
	doc.Actions = append(doc.Actions, toAction(rec))
	return writeContainer(l.path, doc)
}

// Records reloads the log from disk.
func (l *Log) Records() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Load(l.path)
}

// Load parses the log at path. A missing file yields no records.
func Load(path string) ([]Record, error) {
	doc, err := readContainer(path)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(doc.Actions))
	for _, a := range doc.Actions {
		rec, err := fromAction(a)
		if err != nil {
			return nil, fmt.Errorf("audit log %s: %w", path, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func readContainer(path string) (*container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &container{}, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &container{}, nil
	}
	doc := &container{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse audit log %s: %w", path, err)
	}
	return doc, nil
}

func writeContainer(path string, doc *container) error {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit log: %w", err)
	}
	data := make([]byte, 0, len(xml.Header)+len(body)+1)
	data = append(data, xml.Header...)
	data = append(data, body...)
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync audit log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write audit log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace audit log: %w", err)
	}
	return nil
}
