package errors

import (
	"go.uber.org/zap"
)

// LogError는 에러를 구조화된 로그로 기록합니다
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err), zap.String("error_code", CodeOf(err)))
	allFields = append(allFields, fields...)

	logger.Error(msg, allFields...)
}

// LogWarn은 격리된(상위 작업을 중단시키지 않는) 에러를 Warn 레벨로 기록합니다
func LogWarn(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err), zap.String("error_code", CodeOf(err)))
	allFields = append(allFields, fields...)

	logger.Warn(msg, allFields...)
}
