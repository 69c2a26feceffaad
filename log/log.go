package log

import "go.uber.org/zap"

var logger = zap.NewNop()

// 设置全局日志器（未设置时默认不输出）
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

func GetLogger() *zap.Logger {
	return logger
}

func Debug(msg string, fields ...zap.Field) {
	logger.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}
