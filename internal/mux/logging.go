package mux

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// setupLogging installs a console logger on stderr when debug output is wanted.
func setupLogging(debug bool) {
	if !debug {
		logger = zap.NewNop()
		return
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.DebugLevel,
	)
	logger = zap.New(core).Named("mux")
}
