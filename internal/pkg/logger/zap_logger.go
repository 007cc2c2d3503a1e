package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ILogger is the tracing contract every component logs through. correlation_id
// and batch_id are carried as explicit fields rather than folded into details
// so every line touching a request or batch is greppable by either key.
type ILogger interface {
	Debug(module, message string, fields Fields)
	Info(module, message string, fields Fields)
	Warn(module, message string, fields Fields)
	Error(module, message string, fields Fields)
	Sync() error
}

// Fields carries the structured attributes for one log line. CorrelationID
// and BatchID are promoted to top-level keys; Details holds everything else.
type Fields struct {
	CorrelationID string
	BatchID       string
	Details       map[string]interface{}
}

type ZapLogger struct {
	logger *zap.Logger
}

func NewZapLogger(logFilePath string, isProd bool) *ZapLogger {
	rotator := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	fileCore := zapcore.NewCore(
		jsonEncoder,
		zapcore.AddSync(rotator),
		zap.DebugLevel,
	)

	var consoleEncoder zapcore.Encoder
	if isProd {
		consoleEncoder = jsonEncoder
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	consoleCore := zapcore.NewCore(
		consoleEncoder,
		zapcore.Lock(os.Stdout),
		zap.DebugLevel,
	)

	core := zapcore.NewTee(fileCore, consoleCore)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{logger: l}
}

func (l *ZapLogger) fieldsToZap(module string, f Fields) []zap.Field {
	out := []zap.Field{zap.String("module", module)}
	if f.CorrelationID != "" {
		out = append(out, zap.String("correlation_id", f.CorrelationID))
	}
	if f.BatchID != "" {
		out = append(out, zap.String("batch_id", f.BatchID))
	}
	if len(f.Details) > 0 {
		out = append(out, zap.Any("details", f.Details))
	}
	return out
}

func (l *ZapLogger) Debug(module, message string, f Fields) {
	l.logger.Debug(message, l.fieldsToZap(module, f)...)
}

func (l *ZapLogger) Info(module, message string, f Fields) {
	l.logger.Info(message, l.fieldsToZap(module, f)...)
}

func (l *ZapLogger) Warn(module, message string, f Fields) {
	l.logger.Warn(message, l.fieldsToZap(module, f)...)
}

func (l *ZapLogger) Error(module, message string, f Fields) {
	l.logger.Error(message, l.fieldsToZap(module, f)...)
}

func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}
