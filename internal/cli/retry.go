package cli

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/isometry/ldap-verifier/internal/ldap"
)

var newBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// withRetry runs op, retrying up to retries times while its error is
// retryable. Any other error is returned immediately.
func withRetry(ctx context.Context, retries uint64, logger hclog.Logger, op func() error) error {
	if retries == 0 {
		return op()
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), retries), ctx)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := op()
		if err != nil && !ldap.IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, delay time.Duration) {
		logger.Warn("directory unavailable, retrying",
			"attempt", attempt,
			"delay", delay,
			"category", ldap.GetErrorCategory(err),
			"error", err,
		)
	})
}
