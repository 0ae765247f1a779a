package errors

// 공통 에러 코드 정의
const (
	// 일반적인 에러 코드
	ErrInternal        = "INTERNAL"
	ErrNotFound        = "NOT_FOUND"
	ErrInvalidArgument = "INVALID_ARGUMENT"
	ErrUnauthenticated = "UNAUTHENTICATED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrConflict        = "CONFLICT"
	ErrTimeout         = "TIMEOUT"

	// 동기화 엔진 에러 코드
	ErrConfiguration    = "CONFIGURATION"
	ErrDependency       = "DEPENDENCY_RESOLUTION"
	ErrUpstreamAuth     = "UPSTREAM_AUTH"
	ErrDestinationWrite = "DESTINATION_WRITE"
	ErrTransient        = "TRANSIENT_NETWORK"
)
