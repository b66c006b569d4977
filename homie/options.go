package homie

import (
	"io"
	"log/slog"
)

// options holds the shared configuration of DevicePublisher and
// Controller.
type options struct {
	baseTopic string
	logger    *slog.Logger
}

func defaultOptions() options {
	return options{
		baseTopic: DefaultBaseTopic,
		logger:    discardLogger(),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Option configures a DevicePublisher or Controller.
type Option func(*options)

// WithBaseTopic overrides the default "homie/" topic prefix. It must
// end with '/'; a missing trailing slash is corrected automatically.
func WithBaseTopic(base string) Option {
	return func(o *options) {
		if base == "" {
			base = DefaultBaseTopic
		}
		if base[len(base)-1] != '/' {
			base += "/"
		}
		o.baseTopic = base
	}
}

// WithLogger installs a structured logger. Absent this option,
// components log nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
