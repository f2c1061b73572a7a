package service

import (
	"errors"
	"fmt"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/remote"
)

var (
	// ErrNetwork: the remote call failed or returned a non-success status.
	ErrNetwork = errors.New("network request failed")

	// ErrStore: the local store is unavailable or a transaction failed.
	ErrStore = errors.New("local store failed")

	// ErrNotFound: the identifier is absent both locally and remotely.
	ErrNotFound = errors.New("not found")
)

// IsNetwork: the error came from the remote API or the path to it.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsStore: the error came from the local store or the outbox.
func IsStore(err error) bool {
	return errors.Is(err, ErrStore)
}

// IsNotFound: the restaurant exists neither locally nor remotely.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// networkError classifies an error returned by the remote client.
func networkError(err error) error {
	if errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrStore, err)
}
