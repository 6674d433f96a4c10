package logger

import (
    "io"
    "os"
    "time"

    "github.com/natefinch/lumberjack"
    logrus "github.com/sirupsen/logrus"
)

// Setup points Logrus at a rotating log file, optionally mirrored to stdout,
// and returns the writer so request logs can share it.
func Setup(file, level string, stdout bool) io.Writer {
    rotator := &lumberjack.Logger{
        Filename:   file,
        MaxSize:    10, // megabytes
        MaxBackups: 7,
        MaxAge:     7, // days
        Compress:   true,
    }

    var out io.Writer = rotator
    if stdout {
        out = io.MultiWriter(os.Stdout, rotator)
    }

    logrus.SetOutput(out)
    logrus.SetFormatter(&logrus.TextFormatter{
        FullTimestamp:   true,
        TimestampFormat: time.RFC3339,
    })

    lvl, err := logrus.ParseLevel(level)
    if err != nil {
        lvl = logrus.InfoLevel
    }
    logrus.SetLevel(lvl)
    return out
}
