package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig - конфигурация структурированного логирования
type LogConfig struct {
	Level       string // debug, info, warn, error
	Format      string // json или text
	OutputFile  string // путь к файлу, пусто = stdout
	Development bool   // режим разработки (подробные stack traces)
}

// Logger оборачивает zap.Logger и добавляет доменные хелперы.
//
// Секреты (API ключи, расшифрованные credentials) в логи не попадают
// никогда - в полях передаются только идентификаторы (uid, provider).
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

// InitLogger создаёт и настраивает logger.
//
// Уровни: debug, info, warn, error (default: info).
// Форматы: json (production), text (читаемый вывод в разработке).
// При некорректном OutputFile откатывается на stdout вместо падения.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if cfg.Format == "text" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stdout)
	if cfg.OutputFile != "" {
		f, err := os.OpenFile(cfg.OutputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
		// При ошибке открытия файла остаёмся на stdout
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	zl := zap.New(core, opts...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// NewNopLogger возвращает logger, который ничего не пишет (для тестов)
func NewNopLogger() *Logger {
	zl := zap.NewNop()
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// parseLevel преобразует строковый уровень в zapcore.Level
func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sugar возвращает SugaredLogger для printf-style логирования
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// With возвращает дочерний logger с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent добавляет имя компонента (sync, stats, provider, api)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(zap.String("component", name))
}

// WithProvider добавляет имя провайдера (bybit, bitget)
func (l *Logger) WithProvider(name string) *Logger {
	return l.With(zap.String("provider", name))
}

// WithUID добавляет uid синхронизируемого аккаунта
func (l *Logger) WithUID(uid string) *Logger {
	return l.With(zap.String("uid", uid))
}

// WithCoin добавляет валюту расчётов
func (l *Logger) WithCoin(coin string) *Logger {
	return l.With(zap.String("coin", coin))
}
