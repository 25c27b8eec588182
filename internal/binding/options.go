package binding

import "github.com/sirupsen/logrus"

// Option configures a Vectorize facade.
type Option func(*options)

type options struct {
	logger logrus.FieldLogger
	schema Schema
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: logrus.StandardLogger(),
		schema: SchemaCurrent,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSchema selects the describe response revision. Defaults to
// SchemaCurrent.
func WithSchema(schema Schema) Option {
	return func(o *options) {
		o.schema = schema
	}
}
