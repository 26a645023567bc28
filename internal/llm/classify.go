package llm

import (
	"context"
	"errors"
	"net"

	"judge-evals/internal/apperr"
)

// classify turns a transport error into a timeout or provider failure.
// reqCtx is the context the call ran under.
func classify(reqCtx context.Context, provider string, err error) error {
	if isTimeout(reqCtx, err) {
		return apperr.Timeout(provider, err)
	}
	return apperr.Provider(provider, err)
}

func isTimeout(reqCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
