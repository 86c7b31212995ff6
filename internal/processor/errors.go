package processor

import (
	"errors"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/directive"
	"github.com/MikeSquared-Agency/decoy/internal/report"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

var (
	// ErrMalformedInput rejects a message before any state is touched.
	ErrMalformedInput = errors.New("malformed input")

	// ErrStorageUnavailable means the session could not be loaded or saved.
	// The persisted session is unchanged.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSessionNotFound is returned by lookups for an unknown session id.
	ErrSessionNotFound = store.ErrNotFound

	// The remaining kinds never fail a turn. They are logged and the turn
	// degrades: rule scores stand in for the external classifier, fallback
	// lines for the generator, and an undelivered report stays pending.
	ErrClassificationUnavailable = classifier.ErrUnavailable
	ErrGeneratorUnavailable      = directive.ErrGeneratorUnavailable
	ErrReportDeliveryFailed      = report.ErrDeliveryFailed
)
