package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it via constructor options
// and log with request-scoped attributes.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
