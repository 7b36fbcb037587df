package cli

import (
	"errors"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

// Process exit codes.
const (
	ExitOK = iota
	ExitInvalidConfig
	ExitUserNotFound
	ExitAuthFailure
	ExitAmbiguousUser
	ExitUnavailable
	ExitChecksFailed
)

// ErrChecksFailed is returned when at least one preflight check did not pass.
var ErrChecksFailed = errors.New("preflight checks failed")

// ExitCode maps an error returned by a command onto the process exit code.
// Errors that match no known class, including usage errors, exit with
// ExitInvalidConfig.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrChecksFailed):
		return ExitChecksFailed
	case errors.Is(err, ldap.ErrDirectoryUnavailable):
		return ExitUnavailable
	case errors.Is(err, ldap.ErrDirectoryAuthFailure):
		return ExitAuthFailure
	case errors.Is(err, ldap.ErrAmbiguousUser):
		return ExitAmbiguousUser
	case errors.Is(err, ldap.ErrUserNotFound):
		return ExitUserNotFound
	default:
		return ExitInvalidConfig
	}
}
