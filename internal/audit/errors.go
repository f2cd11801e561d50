package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument covers unknown actions, blank descriptions and out-of-range paging.
	ErrInvalidArgument = errors.New("audit: invalid argument")
	// ErrStoreUnavailable wraps every persistence failure on the read and delete paths.
	ErrStoreUnavailable = errors.New("audit: store unavailable")
	// ErrPurgeInProgress is returned when another retention sweep holds the purge lock.
	ErrPurgeInProgress = errors.New("audit: purge already in progress")
)

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storeErr tags err as ErrStoreUnavailable unless it is already classified.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
