// Package logging builds the process's log writers from the settings
// document: stdout always, plus an optional rotating file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fretwork/herald/settings"
)

// Writer returns the destination for all loggers. File logging tees
// stdout with the configured file; rotation hands the file to
// lumberjack.
func Writer(path string, cfg settings.LoggingConfig) io.Writer {
	if !cfg.Enabled || path == "" {
		return os.Stdout
	}

	if cfg.Rotation.Enabled {
		return io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.Rotation.MaxSizeMB,
			MaxBackups: cfg.Rotation.KeepBackups,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logging: cannot create log directory: %v", err)
		return os.Stdout
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("logging: cannot open log file: %v", err)
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, f)
}

// New builds a named logger in the house style.
func New(name string, w io.Writer) *log.Logger {
	return log.New(w, name+": ", log.LstdFlags|log.Lmsgprefix)
}

// Debug returns a logger that only writes when the configured level is
// "debug".
func Debug(name string, w io.Writer, cfg settings.LoggingConfig) *log.Logger {
	if cfg.Level != "debug" {
		return New(name, io.Discard)
	}
	return New(name+" debug", w)
}
