package util

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex
)

func init() {
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// InitLogger configures the process logger. Development environments get a
// human readable console writer; everything else logs JSON lines.
func InitLogger(appEnv, level string) {
	var out io.Writer = os.Stdout
	if appEnv == "" || appEnv == "development" || appEnv == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	SetLogger(zerolog.New(out).Level(lvl).With().Timestamp().Logger())
}

// Logger returns the process logger.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger replaces the process logger, e.g. to capture output in tests.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}
