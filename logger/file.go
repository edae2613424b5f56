package logger

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLogFile is the conventional name of the process-wide PED exchange log.
const DefaultLogFile = "ngenius.log"

// NewFile creates a Logger appending JSON records to a rolling file at path.
// As with NewSlog, the records use the console format instead when the ENV
// environment variable is "development".
//
// The file receives every SEND/RECV/ERROR wire line when injected into a
// connection, giving operators a single append-only trace of all PED traffic.
// Rotation keeps the sink bounded: 50 MiB per file, 5 backups, 28 days.
func NewFile(path string, level Level) Logger {
	if path == "" {
		path = DefaultLogFile
	}

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	return newSlogWriter(sink, level, false)
}
