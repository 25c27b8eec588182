// Package env holds the named bindings a process works against, built from
// configuration.
package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"vecbind/config"
	"vecbind/internal/adapter/memstore"
	"vecbind/internal/adapter/record"
	"vecbind/internal/adapter/store"
	"vecbind/internal/binding"
	"vecbind/internal/dynamic"
	"vecbind/internal/port"
)

// ErrUnknownBinding is returned by Vectorize for names the environment does
// not declare.
var ErrUnknownBinding = errors.New("unknown binding")

// rejectKey marks a fixture response that rejects with the given message.
const rejectKey = "$reject"

// Env is a set of named dynamic values.
type Env struct {
	values  map[string]any
	schemas map[string]binding.Schema
	hosts   []port.Host
	timeout time.Duration
	logger  logrus.FieldLogger
}

// New builds the environment declared in cfg. Emulator files are opened and
// migrated; the returned Env owns them until Close.
func New(cfg *config.Config, logger logrus.FieldLogger) (*Env, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Env{
		values:  make(map[string]any, len(cfg.Bindings)),
		schemas: make(map[string]binding.Schema, len(cfg.Bindings)),
		timeout: cfg.Server.CallTimeout,
		logger:  logger,
	}

	for _, bc := range cfg.Bindings {
		schema, err := binding.ParseSchema(bc.Schema)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("binding %s: %w", bc.Name, err)
		}

		value, err := e.build(bc)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("binding %s: %w", bc.Name, err)
		}

		e.values[bc.Name] = value
		e.schemas[bc.Name] = schema
	}

	return e, nil
}

func (e *Env) build(bc config.BindingConfig) (any, error) {
	switch bc.Kind {
	case config.KindEmulator:
		return e.openEmulator(bc)
	case config.KindMemory:
		host := memstore.NewMemoryIndex(indexInfo(bc))
		e.hosts = append(e.hosts, host)
		return host, nil
	case config.KindFixture:
		return Fixture(bc.Fields, bc.Responses), nil
	}
	return nil, fmt.Errorf("unknown kind %q", bc.Kind)
}

func (e *Env) openEmulator(bc config.BindingConfig) (any, error) {
	if err := os.MkdirAll(filepath.Dir(bc.Path), 0755); err != nil {
		return nil, err
	}

	host, err := store.NewBoltIndex(bc.Path, indexInfo(bc))
	if err != nil {
		return nil, err
	}

	result, err := host.Prepare()
	if err != nil {
		host.Close()
		return nil, fmt.Errorf("failed to prepare %s: %w", bc.Path, err)
	}

	logger := e.logger.WithFields(logrus.Fields{
		"binding": bc.Name,
		"path":    bc.Path,
	})
	switch {
	case result.NeedsRebuild:
		logger.WithField("reason", result.Reason).Warn("emulator index cleared")
	case result.NeedsMigration:
		logger.WithFields(logrus.Fields{
			"from": result.OldVersion,
			"to":   result.NewVersion,
		}).Info("emulator index migrated")
	}

	e.hosts = append(e.hosts, host)
	return host, nil
}

func indexInfo(bc config.BindingConfig) record.IndexInfo {
	name := bc.IndexName
	if name == "" {
		name = bc.Name
	}
	return record.IndexInfo{
		Name:        name,
		Description: bc.Description,
		Dimensions:  bc.Dimensions,
		Metric:      bc.Metric,
	}
}

// Fixture builds a plain dynamic object from fields. Each response becomes a
// callable member returning its literal; a literal of the form
// {"$reject": msg} makes the member reject with msg instead.
func Fixture(fields, responses map[string]any) dynamic.Object {
	obj := make(dynamic.Object, len(fields)+len(responses))
	for k, v := range fields {
		obj[k] = v
	}

	for op, literal := range responses {
		obj[op] = respond(literal)
	}

	return obj
}

func respond(literal any) dynamic.Func {
	if m, ok := literal.(map[string]any); ok && len(m) == 1 {
		if msg, ok := m[rejectKey]; ok {
			err := fmt.Errorf("%v", msg)
			return func(ctx context.Context, _ ...any) (any, error) {
				return nil, err
			}
		}
	}

	return func(ctx context.Context, _ ...any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return literal, nil
	}
}

// Get returns the raw value bound to name, or dynamic.Undefined.
func (e *Env) Get(name string) any {
	value, ok := e.values[name]
	if !ok {
		return dynamic.Undefined
	}
	return value
}

// Set binds a raw dynamic value under name with the current schema.
func (e *Env) Set(name string, value any) {
	e.values[name] = value
	e.schemas[name] = binding.SchemaCurrent
}

// Names returns the declared binding names, sorted.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.values))
	for name := range e.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Vectorize resolves the named binding into a typed facade.
func (e *Env) Vectorize(name string) (*binding.Vectorize, error) {
	value, ok := e.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBinding, name)
	}

	return binding.Resolve(value,
		binding.WithSchema(e.schemas[name]),
		binding.WithLogger(e.logger.WithField("binding", name)),
	)
}

// CallContext bounds ctx by the configured call timeout.
func (e *Env) CallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Close releases the hosts owned by the environment.
func (e *Env) Close() error {
	var errs []error
	for _, host := range e.hosts {
		if err := host.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.hosts = nil
	return errors.Join(errs...)
}
