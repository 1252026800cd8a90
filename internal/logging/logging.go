// Package logging builds the run's zap.Logger: structured entries to
// pipeline_run_<run_id>.log alongside a human console sink, level
// controlled independently through config.Config.Logging.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing JSON-encoded entries to logPath at
// fileLevel and console-encoded entries to stderr at consoleLevel.
func New(logPath, fileLevel, consoleLevel string) (*zap.Logger, error) {
	fileLvl, err := zapcore.ParseLevel(fileLevel)
	if err != nil {
		return nil, fmt.Errorf("logging: parse file level %q: %w", fileLevel, err)
	}
	consoleLvl, err := zapcore.ParseLevel(consoleLevel)
	if err != nil {
		return nil, fmt.Errorf("logging: parse console level %q: %w", consoleLevel, err)
	}

	fileSink, _, err := zap.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", logPath, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, fileLvl),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), consoleLvl),
	)

	return zap.New(core), nil
}
