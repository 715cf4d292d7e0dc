package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ClassifyError maps a provider-native error onto one of the package's
// sentinel error classes, wrapping the original so its text survives.
// Errors that fit no class are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{ErrUnreachable, ErrTimeout, ErrModelNotFound, ErrBadRequest} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return errors.Join(ErrUnreachable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Join(ErrUnreachable, err)
	}

	// HTTP-level failures surface as plain error strings from most SDKs;
	// sniff the well-known cases.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"),
		strings.Contains(msg, "404"):
		return errors.Join(ErrModelNotFound, err)
	case strings.Contains(msg, "400"), strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "bad request"):
		return errors.Join(ErrBadRequest, err)
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"):
		return errors.Join(ErrUnreachable, err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return errors.Join(ErrTimeout, err)
	}

	return err
}
