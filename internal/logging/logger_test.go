package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"DEBUG":   logrus.DebugLevel,
		"error":   logrus.ErrorLevel,
		"fatal":   logrus.FatalLevel,
		"info":    logrus.InfoLevel,
		"trace":   logrus.TraceLevel,
		"warn":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"":        logrus.InfoLevel,
		"loud":    logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, GetLevel(in), "level %q", in)
	}
}

func TestSetup_FileOutput(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logPath := filepath.Join(t.TempDir(), "service")
	Setup(LoggerSetupParams{
		LogFileName: logPath,
		LogLevel:    "debug",
	})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	logrus.Debug("written to the log file")

	content, err := os.ReadFile(logPath + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(content), "written to the log file")
}
