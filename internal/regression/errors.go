package regression

import "errors"

var (
	// ErrStorageUnavailable wraps snapshot store failures and timeouts.
	// Evaluate still returns a usable status alongside it.
	ErrStorageUnavailable = errors.New("regression: snapshot storage unavailable")

	ErrEmptyDocumentID = errors.New("regression: document id is empty")

	// ErrNoEvaluation is returned by MarkIntentional when the document has
	// not been evaluated since the process started.
	ErrNoEvaluation = errors.New("regression: document has not been evaluated")

	ErrNilStore = errors.New("regression: nil snapshot store")
)
