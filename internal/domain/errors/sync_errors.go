package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	pkgerrors "github.com/wekeepgrowing/stripe-notion-sync/pkg/errors"
)

var (
	// ErrUnknownEntityType indicates a lookup of a type the registry does not declare
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrCycleDetected indicates the entity dependency graph is not acyclic
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrMissingRequiredDependency indicates a required reference was absent or unresolvable
	ErrMissingRequiredDependency = errors.New("missing required dependency")

	// ErrNotFound indicates the source system has no record with the requested ID
	ErrNotFound = errors.New("source record not found")

	// ErrNotFetchable indicates the type only exists embedded in a parent payload
	ErrNotFetchable = errors.New("entity type cannot be fetched by id")

	// ErrUnknownTenant indicates no tenant is configured under the given ID
	ErrUnknownTenant = errors.New("unknown tenant")
)

// ConfigurationError is a fatal registry or wiring error. It is never expected
// at runtime in a correct build.
type ConfigurationError struct {
	Reason     string
	EntityType entity.EntityType
	Path       []entity.EntityType
	Cause      error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Reason
	if e.EntityType != "" {
		msg += fmt.Sprintf(" (entity type: %s)", e.EntityType)
	}
	if len(e.Path) > 0 {
		parts := make([]string, len(e.Path))
		for i, t := range e.Path {
			parts[i] = string(t)
		}
		msg += " [" + strings.Join(parts, " -> ") + "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func (e *ConfigurationError) Code() string { return pkgerrors.ErrConfiguration }

// NewUnknownEntityTypeError reports a lookup of an undeclared entity type
func NewUnknownEntityTypeError(t entity.EntityType) *ConfigurationError {
	return &ConfigurationError{Reason: "entity type is not registered", EntityType: t, Cause: ErrUnknownEntityType}
}

// NewCycleError reports a back edge found during topological sorting
func NewCycleError(path []entity.EntityType) *ConfigurationError {
	return &ConfigurationError{Reason: "entity dependencies form a cycle", Path: path, Cause: ErrCycleDetected}
}

// DependencyResolutionError fails one record whose dependency could not be
// resolved. Sibling records are unaffected.
type DependencyResolutionError struct {
	EntityType   entity.EntityType
	SourceID     string
	Dependency   entity.EntityType
	DependencyID string
	Cause        error
}

func (e *DependencyResolutionError) Error() string {
	target := string(e.Dependency)
	if e.DependencyID != "" {
		target += " " + e.DependencyID
	}
	return fmt.Sprintf("resolve %s of %s %s: %v", target, e.EntityType, e.SourceID, e.Cause)
}

func (e *DependencyResolutionError) Unwrap() error { return e.Cause }

func (e *DependencyResolutionError) Code() string { return pkgerrors.ErrDependency }

// NewMissingDependencyError reports an absent required reference
func NewMissingDependencyError(t entity.EntityType, sourceID string, dep entity.EntityType) *DependencyResolutionError {
	return &DependencyResolutionError{
		EntityType: t,
		SourceID:   sourceID,
		Dependency: dep,
		Cause:      ErrMissingRequiredDependency,
	}
}

// DestinationError is a non-2xx response from the destination API.
type DestinationError struct {
	StatusCode int
	APICode    string
	Message    string
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("destination responded %d %s: %s", e.StatusCode, e.APICode, e.Message)
}

func (e *DestinationError) Code() string {
	if e.IsAuth() {
		return pkgerrors.ErrUpstreamAuth
	}
	return pkgerrors.ErrDestinationWrite
}

// IsAuth reports an invalid or unauthorized destination credential.
func (e *DestinationError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func (e *DestinationError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// Retryable reports whether the transport may retry the request. Client and
// validation errors fail immediately.
func (e *DestinationError) Retryable() bool {
	return e.IsRateLimited() || e.StatusCode >= 500 || e.APICode == "conflict_error"
}

// TransientError wraps a network failure that outlived the transport retries.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient network error: %v", e.Op, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

func (e *TransientError) Code() string { return pkgerrors.ErrTransient }

// SourceError wraps a failure reported by the source API.
type SourceError struct {
	EntityType entity.EntityType
	SourceID   string
	Cause      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s %s: %v", e.EntityType, e.SourceID, e.Cause)
}

func (e *SourceError) Unwrap() error { return e.Cause }

func (e *SourceError) Code() string {
	if errors.Is(e.Cause, ErrNotFound) {
		return pkgerrors.ErrNotFound
	}
	return pkgerrors.ErrInternal
}

// Classify maps an error onto the recorded sync error taxonomy.
func Classify(err error) entity.SyncErrorKind {
	var (
		cfgErr  *ConfigurationError
		depErr  *DependencyResolutionError
		destErr *DestinationError
		netErr  *TransientError
		srcErr  *SourceError
		opErr   net.Error
	)
	switch {
	case errors.As(err, &cfgErr):
		return entity.SyncErrorConfiguration
	case errors.As(err, &destErr):
		if destErr.IsAuth() {
			return entity.SyncErrorUpstreamAuth
		}
		return entity.SyncErrorDestinationWrite
	case errors.As(err, &depErr):
		return entity.SyncErrorDependency
	case errors.As(err, &netErr), errors.As(err, &opErr):
		return entity.SyncErrorTransient
	case errors.As(err, &srcErr):
		return entity.SyncErrorSource
	}
	return entity.SyncErrorInternal
}

// IsAuthError reports whether err carries a destination credential failure.
func IsAuthError(err error) bool {
	return Classify(err) == entity.SyncErrorUpstreamAuth
}
