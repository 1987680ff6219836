package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique value (source URL, item URL) already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidTransition rejects a run status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid run status transition")

	// ErrRunInProgress rejects a trigger while another run is in flight.
	ErrRunInProgress = errors.New("a discovery run is already in progress")

	// ErrEmptyQuery rejects chat requests without a question.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrInvalidSource rejects a source with a malformed URL or unknown fetch strategy.
	ErrInvalidSource = errors.New("invalid source")

	// ErrNoLanguageModel is returned when an operation needs the LLM and none is configured.
	ErrNoLanguageModel = errors.New("no language model configured")
)
