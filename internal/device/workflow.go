package device

import (
	"context"
	"errors"
	"fmt"
)

// Changes opens drv, loads config as a merge candidate and returns the
// resulting diff. The candidate is committed when commit is set and
// discarded otherwise. The session is always closed.
func Changes(ctx context.Context, drv Driver, config string, commit bool) (diff string, err error) {
	if err := drv.Open(ctx); err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()

	if err := drv.LoadMergeCandidate(config); err != nil {
		return "", fmt.Errorf("load merge candidate: %w", err)
	}
	diff, err = drv.CompareConfig(ctx)
	if err != nil {
		return "", errors.Join(fmt.Errorf("compare: %w", err), drv.DiscardConfig())
	}

	if commit && diff != "" {
		if err := drv.CommitConfig(ctx); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		return diff, nil
	}
	if err := drv.DiscardConfig(); err != nil {
		return "", fmt.Errorf("discard: %w", err)
	}
	return diff, nil
}

// GetFacts opens drv, reads its facts and closes it.
func GetFacts(ctx context.Context, drv Driver) (facts Facts, err error) {
	if err := drv.Open(ctx); err != nil {
		return Facts{}, fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return drv.GetFacts(ctx)
}
