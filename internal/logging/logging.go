// Package logging builds the JSON zap loggers shared by the HTTP layer and startup code.
package logging

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger writing one object per line to w.
// Timestamps are RFC3339Nano in loc under the "ts" key.
func New(w io.Writer, loc *time.Location) *zap.Logger {
	if loc == nil {
		loc = time.UTC
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeTime: func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(t.In(loc).Format(time.RFC3339Nano))
		},
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)
	return zap.New(core)
}

// NewStdout is New writing to os.Stdout.
func NewStdout(loc *time.Location) *zap.Logger {
	return New(os.Stdout, loc)
}

// Location resolves an IANA zone name, falling back to UTC.
func Location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
