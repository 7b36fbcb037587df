package ldap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
)

func TestNewLDAPError(t *testing.T) {
	tests := []struct {
		name         string
		operation    string
		err          error
		wantNil      bool
		wantCategory ErrorCategory
		wantCode     uint16
	}{
		{
			name:      "nil error",
			operation: "search",
			err:       nil,
			wantNil:   true,
		},
		{
			name:         "ldap error",
			operation:    "bind",
			err:          ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
			wantCategory: ErrorCategoryAuthentication,
			wantCode:     ldap.LDAPResultInvalidCredentials,
		},
		{
			name:         "wrapped ldap error",
			operation:    "search",
			err:          fmt.Errorf("search failed: %w", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object"))),
			wantCategory: ErrorCategoryNotFound,
			wantCode:     ldap.LDAPResultNoSuchObject,
		},
		{
			name:         "network error from dial",
			operation:    "connect",
			err:          ldap.NewError(ldap.ErrorNetwork, errors.New("dial tcp: connection refused")),
			wantCategory: ErrorCategoryConnection,
			wantCode:     ldap.ErrorNetwork,
		},
		{
			name:         "generic error",
			operation:    "connect",
			err:          errors.New("connection refused"),
			wantCategory: ErrorCategoryConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewLDAPError(tt.operation, tt.err)

			if tt.wantNil {
				if result != nil {
					t.Errorf("NewLDAPError() = %v, want nil", result)
				}
				return
			}

			if result == nil {
				t.Fatal("NewLDAPError() = nil, want non-nil")
			}
			if result.Operation != tt.operation {
				t.Errorf("Operation = %s, want %s", result.Operation, tt.operation)
			}
			if result.Cause != tt.err {
				t.Errorf("Cause = %v, want %v", result.Cause, tt.err)
			}
			if result.Category != tt.wantCategory {
				t.Errorf("Category = %s, want %s", result.Category, tt.wantCategory)
			}
			if result.LDAPCode != tt.wantCode {
				t.Errorf("LDAPCode = %d, want %d", result.LDAPCode, tt.wantCode)
			}
		})
	}
}

func TestLDAPError_Error(t *testing.T) {
	tests := []struct {
		name    string
		ldapErr *LDAPError
		want    string
	}{
		{
			name: "basic error",
			ldapErr: &LDAPError{
				Operation: "search",
				Message:   "operation failed",
			},
			want: "LDAP search failed - operation failed",
		},
		{
			name: "error with code",
			ldapErr: &LDAPError{
				Operation: "bind",
				LDAPCode:  ldap.LDAPResultInvalidCredentials,
				Message:   "authentication failed",
			},
			want: "LDAP bind failed (code 49) - authentication failed",
		},
		{
			name: "error with server message",
			ldapErr: &LDAPError{
				Operation: "search",
				Message:   "No Such Object",
				ServerMsg: "base does not exist",
			},
			want: "LDAP search failed - No Such Object - server: base does not exist",
		},
		{
			name: "error with DN",
			ldapErr: &LDAPError{
				Operation: "search",
				Message:   "access denied",
				DN:        "ou=users,dc=example,dc=com",
			},
			want: "LDAP search failed - access denied - DN: ou=users,dc=example,dc=com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.ldapErr.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLDAPError_Is(t *testing.T) {
	tests := []struct {
		name            string
		category        ErrorCategory
		wantUnavailable bool
		wantAuthFailure bool
		wantInvalid     bool
	}{
		{"connection", ErrorCategoryConnection, true, false, false},
		{"server", ErrorCategoryServer, true, false, false},
		{"authentication", ErrorCategoryAuthentication, false, true, false},
		{"validation", ErrorCategoryValidation, false, false, true},
		{"not found", ErrorCategoryNotFound, false, false, false},
		{"unknown", ErrorCategoryUnknown, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &LDAPError{Operation: "bind", Category: tt.category})

			if got := errors.Is(err, ErrDirectoryUnavailable); got != tt.wantUnavailable {
				t.Errorf("errors.Is(ErrDirectoryUnavailable) = %v, want %v", got, tt.wantUnavailable)
			}
			if got := errors.Is(err, ErrDirectoryAuthFailure); got != tt.wantAuthFailure {
				t.Errorf("errors.Is(ErrDirectoryAuthFailure) = %v, want %v", got, tt.wantAuthFailure)
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.wantInvalid {
				t.Errorf("errors.Is(ErrInvalidConfig) = %v, want %v", got, tt.wantInvalid)
			}
			if errors.Is(err, ErrUserNotFound) {
				t.Error("LDAPError must never match ErrUserNotFound")
			}
		})
	}
}

func TestNewBindError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "invalid credentials",
			err:  ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad password")),
			want: ErrDirectoryAuthFailure,
		},
		{
			name: "strong auth required",
			err:  ldap.NewError(ldap.LDAPResultStrongAuthRequired, errors.New("need TLS")),
			want: ErrDirectoryAuthFailure,
		},
		{
			name: "kerberos failure without result code",
			err:  errors.New("failed to create GSSAPI client: KDC_ERR_PREAUTH_FAILED"),
			want: ErrDirectoryAuthFailure,
		},
		{
			name: "insufficient access is still a rejection",
			err:  ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("denied")),
			want: ErrDirectoryAuthFailure,
		},
		{
			name: "server down",
			err:  ldap.NewError(ldap.LDAPResultServerDown, errors.New("gone")),
			want: ErrDirectoryUnavailable,
		},
		{
			name: "network error",
			err:  ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset by peer")),
			want: ErrDirectoryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newBindError("cn=svc,dc=example,dc=com", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("newBindError() = %v, want errors.Is %v", got, tt.want)
			}
			if got.DN != "cn=svc,dc=example,dc=com" {
				t.Errorf("DN = %q", got.DN)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		code uint16
		want ErrorCategory
	}{
		{"invalid credentials", ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication},
		{"inappropriate authentication", ldap.LDAPResultInappropriateAuthentication, ErrorCategoryAuthentication},
		{"insufficient access", ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission},
		{"no such object", ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound},
		{"filter error", ldap.LDAPResultFilterError, ErrorCategoryValidation},
		{"filter compile", ldap.ErrorFilterCompile, ErrorCategoryValidation},
		{"busy", ldap.LDAPResultBusy, ErrorCategoryServer},
		{"unavailable", ldap.LDAPResultUnavailable, ErrorCategoryServer},
		{"network", ldap.ErrorNetwork, ErrorCategoryConnection},
		{"timeout", ldap.LDAPResultTimeout, ErrorCategoryConnection},
		{"admin limit exceeded", ldap.LDAPResultAdminLimitExceeded, ErrorCategoryValidation},
		{"time limit exceeded", ldap.LDAPResultTimeLimitExceeded, ErrorCategoryValidation},
		{"size limit exceeded", ldap.LDAPResultSizeLimitExceeded, ErrorCategoryValidation},
		{"unknown code", 9999, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeError(tt.code); got != tt.want {
				t.Errorf("categorizeError(%d) = %s, want %s", tt.code, got, tt.want)
			}
		})
	}
}

func TestCategorizeGenericError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:389: connect: connection refused"), ErrorCategoryConnection},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), ErrorCategoryConnection},
		{"unknown host", errors.New("lookup ldap.invalid: no such host"), ErrorCategoryConnection},
		{"kerberos", errors.New("kerberos realm is required"), ErrorCategoryAuthentication},
		{"password", errors.New("empty password not allowed"), ErrorCategoryAuthentication},
		{"other", errors.New("something else"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categorizeGenericError(tt.err); got != tt.want {
				t.Errorf("categorizeGenericError() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server busy", NewLDAPError("search", ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))), true},
		{"admin limit exceeded", NewLDAPError("search", ldap.NewError(ldap.LDAPResultAdminLimitExceeded, errors.New("limit"))), false},
		{"network", NewLDAPError("connect", ldap.NewError(ldap.ErrorNetwork, errors.New("refused"))), true},
		{"invalid credentials", NewLDAPError("bind", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("no"))), false},
		{"wrapped retryable", fmt.Errorf("open: %w", &LDAPError{Retryable: true}), true},
		{"plain error", errors.New("connection refused"), false},
		{"user not found", &UserError{User: "alice", Err: ErrUserNotFound}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	if got := GetErrorCategory(nil); got != ErrorCategoryUnknown {
		t.Errorf("GetErrorCategory(nil) = %s", got)
	}
	if got := GetErrorCategory(ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("x"))); got != ErrorCategoryNotFound {
		t.Errorf("GetErrorCategory(raw) = %s, want not_found", got)
	}
	if got := GetErrorCategory(fmt.Errorf("x: %w", &LDAPError{Category: ErrorCategoryPermission})); got != ErrorCategoryPermission {
		t.Errorf("GetErrorCategory(wrapped) = %s, want permission", got)
	}
}

func TestGetLDAPCodeMessage(t *testing.T) {
	if got := getLDAPCodeMessage(ldap.LDAPResultInvalidCredentials); got != "Invalid Credentials" {
		t.Errorf("getLDAPCodeMessage(49) = %q", got)
	}
	if got := getLDAPCodeMessage(9999); got != "Unknown LDAP error (code 9999)" {
		t.Errorf("getLDAPCodeMessage(9999) = %q", got)
	}
}

func TestUserError(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
		is   error
	}{
		{
			name: "not found",
			err:  &UserError{User: "alice", Err: ErrUserNotFound},
			want: `user "alice" not found`,
			is:   ErrUserNotFound,
		},
		{
			name: "ambiguous",
			err:  &UserError{User: "bob", Err: ErrAmbiguousUser},
			want: `user "bob" matched more than one directory entry`,
			is:   ErrAmbiguousUser,
		},
		{
			name: "other",
			err:  &UserError{User: "carol", Err: ErrDirectoryAuthFailure},
			want: `user "carol": directory authentication failed`,
			is:   ErrDirectoryAuthFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, tt.is) {
				t.Errorf("errors.Is(%v) = false", tt.is)
			}
		})
	}

	if !IsUserLevel(&UserError{User: "a", Err: ErrUserNotFound}) {
		t.Error("IsUserLevel(not found) = false")
	}
	if IsUserLevel(&LDAPError{Category: ErrorCategoryConnection}) {
		t.Error("IsUserLevel(connection) = true")
	}
}
