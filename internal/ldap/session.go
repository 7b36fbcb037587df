package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/go-hclog"
)

// Conn is the subset of *ldap.Conn a Session uses.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
	StartTLS(config *tls.Config) error
	SetTimeout(timeout time.Duration)
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	Close() error
}

// Dialer opens the transport to one provider URL. TLS is already negotiated
// for ldaps URLs; StartTLS and binding are left to the Session.
type Dialer func(ctx context.Context, providerURL string, tlsConfig *tls.Config, timeout time.Duration) (Conn, error)

var _ Conn = (*ldap.Conn)(nil)

// DialURL is the default Dialer, backed by go-ldap.
func DialURL(_ context.Context, providerURL string, tlsConfig *tls.Config, timeout time.Duration) (Conn, error) {
	opts := []ldap.DialOpt{ldap.DialWithTLSConfig(tlsConfig)}
	if timeout > 0 {
		opts = append(opts, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	}
	conn, err := ldap.DialURL(providerURL, opts...)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Option configures sessions and resolvers.
type Option func(*options)

type options struct {
	logger hclog.Logger
	dialer Dialer
	srv    SRVResolver
}

func getOptions(opts ...Option) options {
	o := options{dialer: DialURL, srv: net.DefaultResolver}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = loggerOrNull(o.logger)
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDialer replaces the network dial.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithSRVResolver replaces the DNS resolver used for provider URLs without a
// host.
func WithSRVResolver(r SRVResolver) Option {
	return func(o *options) {
		if r != nil {
			o.srv = r
		}
	}
}

// Session is one bound directory connection. It is not safe for concurrent
// use; callers open a session per operation and defer Close.
type Session struct {
	conn        Conn
	providerURL string
	pageSize    uint32
	readTimeout time.Duration
	logger      hclog.Logger
}

// Open dials the provider URLs in order and binds on the first reachable one.
// URLs without a host are first expanded through DNS SRV records.
// Transport failures surface as ErrDirectoryUnavailable, rejected credentials
// as ErrDirectoryAuthFailure.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration cannot be nil", ErrInvalidConfig)
	}
	o := getOptions(opts...)
	logger := o.logger.Named("session")

	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("%w: at least one provider URL is required", ErrInvalidConfig)
	}

	urls, err := discoverProviders(ctx, cfg.URLs, cfg.UseTLS, o.srv, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var lastErr error
	if len(urls) == 0 {
		lastErr = errors.New("no directory servers discovered")
	}
	for _, raw := range urls {
		if err := ctx.Err(); err != nil {
			return nil, NewLDAPError("connect", err)
		}

		providerURL, err := effectiveURL(raw, cfg.UseTLS)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		fields := map[string]any{"url": providerURL, "auth_method": cfg.Authentication.String()}

		tlsConfig, err := buildTLSConfig(cfg, providerURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		LogConnectionEvent(logger, "connection_attempt", fields)
		conn, err := o.dialer(ctx, providerURL, tlsConfig, cfg.ConnectTimeout)
		if err == nil && cfg.StartTLS && strings.HasPrefix(providerURL, "ldap://") {
			if err = conn.StartTLS(tlsConfig); err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			lastErr = err
			fields["error"] = err.Error()
			LogConnectionEvent(logger, "connection_failed", fields)
			continue
		}
		conn.SetTimeout(cfg.ReadTimeout)
		LogConnectionEvent(logger, "connection_established", fields)

		s := &Session{
			conn:        conn,
			providerURL: providerURL,
			pageSize:    cfg.PageSize,
			readTimeout: cfg.ReadTimeout,
			logger:      logger,
		}

		if err := s.bind(cfg); err != nil {
			_ = s.Close()
			if errors.Is(err, ErrDirectoryUnavailable) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return s, nil
	}

	ldapErr := NewLDAPError("connect", lastErr)
	if ldapErr == nil {
		ldapErr = &LDAPError{Operation: "connect", Message: "no provider URL reachable"}
	}
	// Every provider failed below the bind, so the directory is unreachable.
	ldapErr.Category = ErrorCategoryConnection
	ldapErr.Retryable = true
	return nil, ldapErr
}

// effectiveURL switches ldap:// to ldaps:// when the connection must use TLS.
func effectiveURL(raw string, useTLS bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid provider URL %q: %w", raw, err)
	}
	if useTLS && u.Scheme == "ldap" {
		u.Scheme = "ldaps"
	}
	// The DN part of an LDAP URL is not used for dialing.
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

func buildTLSConfig(cfg *Config, providerURL string) (*tls.Config, error) {
	host, err := extractHostFromURL(providerURL)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         host,
		InsecureSkipVerify: cfg.TLSSkipVerify,
	}

	if cfg.TLSCACertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCACertFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

func (s *Session) bind(cfg *Config) error {
	fields := map[string]any{
		"auth_method": cfg.Authentication.String(),
		"principal":   cfg.BindDN,
	}
	LogConnectionEvent(s.logger, "authentication_attempt", fields)

	var err error
	switch cfg.Authentication {
	case AuthMethodNone:
		err = s.conn.UnauthenticatedBind("")
	case AuthMethodSimpleBind:
		if cfg.BindDN == "" {
			err = s.conn.UnauthenticatedBind("")
		} else {
			err = s.conn.Bind(cfg.BindDN, cfg.BindPassword)
		}
	case AuthMethodKerberos:
		err = s.bindKerberos(cfg)
	default:
		return fmt.Errorf("%w: unsupported authentication method %d", ErrInvalidConfig, cfg.Authentication)
	}

	if err != nil {
		fields["error"] = err.Error()
		LogConnectionEvent(s.logger, "authentication_failed", fields)
		if errors.Is(err, ErrInvalidConfig) {
			return err
		}
		return newBindError(cfg.BindDN, err)
	}

	LogConnectionEvent(s.logger, "authentication_success", fields)
	return nil
}

func (s *Session) bindKerberos(cfg *Config) error {
	ks, err := prepareKerberosConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: kerberos configuration error: %w", ErrInvalidConfig, err)
	}

	client, err := createGSSAPIClient(s.logger, ks)
	if err != nil {
		LogKerberosEvent(s.logger, "client_creation_failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn, err := buildServicePrincipal(ks, s.providerURL)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}
	LogKerberosEvent(s.logger, "principal_resolved", map[string]any{"spn": spn})

	if err := s.conn.GSSAPIBind(client, spn, ""); err != nil {
		return fmt.Errorf("GSSAPI bind failed: %w", err)
	}
	return nil
}

// ProviderURL returns the URL the session is connected to.
func (s *Session) ProviderURL() string {
	return s.providerURL
}

// Search runs a synchronous search and returns an iterator over the result.
func (s *Session) Search(ctx context.Context, req SearchRequest) (*EntryIterator, error) {
	if s.conn == nil {
		return nil, NewLDAPError("search", net.ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewLDAPError("search", err)
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
	}

	timeLimit := 0
	if s.readTimeout > 0 {
		timeLimit = int(s.readTimeout.Round(time.Second) / time.Second)
	}

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		0, // SizeLimit
		timeLimit,
		false, // TypesOnly
		req.Filter,
		req.Attributes,
		nil, // Controls
	)

	start := time.Now()
	var (
		result *ldap.SearchResult
		err    error
	)
	if s.pageSize > 0 {
		result, err = s.conn.SearchWithPaging(ldapReq, s.pageSize)
	} else {
		result, err = s.conn.Search(ldapReq)
	}
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		LogLDAPError(s.logger, "search", err, fields)
		ldapErr := NewLDAPError("search", err)
		ldapErr.DN = req.BaseDN
		return nil, ldapErr
	}

	fields["entries_found"] = len(result.Entries)
	s.logger.Debug("search completed", fieldArgs(fields)...)

	return &EntryIterator{entries: result.Entries, logger: s.logger}, nil
}

// Close releases the connection. Calling it more than once is harmless.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	LogConnectionEvent(s.logger, "connection_closed", map[string]any{"url": s.providerURL})
	return err
}

// EntryIterator walks the entries of one search result in server order. It
// cannot be restarted, and dropping it early leaves the session open.
type EntryIterator struct {
	entries []*ldap.Entry
	pos     int
	current *Entry
	logger  hclog.Logger
}

// Next advances to the next entry, reporting whether there is one.
func (it *EntryIterator) Next() bool {
	if it.pos >= len(it.entries) {
		it.current = nil
		return false
	}
	it.current = convertEntry(it.entries[it.pos], it.logger)
	it.pos++
	return true
}

// Entry returns the entry Next moved to.
func (it *EntryIterator) Entry() *Entry {
	return it.current
}

// binaryAttributes decode values the directory stores as raw bytes.
var binaryAttributes = map[string]func([]byte) (string, error){
	"objectsid":   DecodeSID,
	"tokengroups": DecodeSID,
	"sidhistory":  DecodeSID,
	"objectguid":  DecodeGUID,
}

func convertEntry(e *ldap.Entry, logger hclog.Logger) *Entry {
	attrs := make(map[string][]string, len(e.Attributes))
	for _, a := range e.Attributes {
		decode, ok := binaryAttributes[strings.ToLower(a.Name)]
		if !ok {
			attrs[a.Name] = a.Values
			continue
		}
		values := make([]string, 0, len(a.ByteValues))
		for _, raw := range a.ByteValues {
			v, err := decode(raw)
			if err != nil {
				// Some servers already return the textual form.
				logger.Trace("keeping undecoded binary value", "attribute", a.Name, "dn", e.DN, "error", err)
				v = string(raw)
			}
			values = append(values, v)
		}
		attrs[a.Name] = values
	}
	return &Entry{DN: e.DN, Attributes: attrs}
}
