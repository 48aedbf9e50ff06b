package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("domain: not found")

	// ErrRateLimited is returned by RPC transports when the remote endpoint
	// answered with HTTP 429 or an equivalent throttling response.
	ErrRateLimited = errors.New("domain: rate limited")

	// ErrAccountNotFound is returned when an on-chain account lookup
	// succeeds at the transport level but the account does not exist.
	ErrAccountNotFound = errors.New("domain: account not found")

	// ErrDecodeFailed is returned when raw account bytes cannot be decoded
	// into a pool state for the pool's venue.
	ErrDecodeFailed = errors.New("domain: account decode failed")

	// ErrTerminalStatus is returned when a lifecycle transition is requested
	// on an opportunity that already reached a terminal status.
	ErrTerminalStatus = errors.New("domain: opportunity in terminal status")

	// ErrInvalidTransition is returned when a lifecycle transition is not
	// allowed from the opportunity's current status.
	ErrInvalidTransition = errors.New("domain: invalid status transition")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("domain: invalid input")

	// ErrLockHeld is returned when a distributed lock is already held by
	// another party.
	ErrLockHeld = errors.New("domain: lock already held")
)
