//go:build !unix

package audit

// lockFile is a no-op where flock is unavailable; the in-process mutex on
// Log still serializes appenders that share a Log value.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
