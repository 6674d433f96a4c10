package logger

import (
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/sirupsen/logrus"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestSetupWritesToFile(t *testing.T) {
    prevOut, prevLevel := logrus.StandardLogger().Out, logrus.GetLevel()
    defer func() {
        logrus.SetOutput(prevOut)
        logrus.SetLevel(prevLevel)
    }()

    path := filepath.Join(t.TempDir(), "app.log")
    Setup(path, "warn", false)

    logrus.Info("dropped")
    logrus.WithField("bus_id", 3).Warn("kept")

    data, err := os.ReadFile(path)
    require.NoError(t, err)
    assert.False(t, strings.Contains(string(data), "dropped"))
    assert.True(t, strings.Contains(string(data), "bus_id=3"))
}

func TestSetupUnknownLevelFallsBackToInfo(t *testing.T) {
    prevOut, prevLevel := logrus.StandardLogger().Out, logrus.GetLevel()
    defer func() {
        logrus.SetOutput(prevOut)
        logrus.SetLevel(prevLevel)
    }()

    Setup(filepath.Join(t.TempDir(), "app.log"), "chatty", false)
    assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
