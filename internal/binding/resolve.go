package binding

import (
	"reflect"

	"vecbind/internal/dynamic"
	"vecbind/internal/port"
)

// TypeName is the binding type reported in resolution errors.
const TypeName = "Vectorize"

// Kind classifies a dynamic value offered as a binding.
type Kind int

const (
	// KindInvalid values are not objects and cannot be wrapped.
	KindInvalid Kind = iota

	// KindGenuine values implement port.VectorizeIndex.
	KindGenuine

	// KindCapable values are objects that already expose describe, insert or
	// upsert. They are wrapped unchanged.
	KindCapable

	// KindPlainObject values are objects exposing none of the operations.
	// They get a describe shim.
	KindPlainObject
)

func (k Kind) String() string {
	switch k {
	case KindGenuine:
		return "genuine"
	case KindCapable:
		return "capable"
	case KindPlainObject:
		return "plain"
	}
	return "invalid"
}

// operations are the members whose presence marks an object as capable.
var operations = []string{"describe", "insert", "upsert"}

// Classify decides how a dynamic value is turned into a binding.
func Classify(value any) Kind {
	if _, ok := value.(port.VectorizeIndex); ok && dynamic.TypeOf(value) != "null" {
		return KindGenuine
	}

	if !dynamic.IsObject(value) {
		return KindInvalid
	}

	for _, op := range operations {
		if exposes(value, op) {
			return KindCapable
		}
	}

	return KindPlainObject
}

// exposes reports whether value carries op as a property or as a Go method.
func exposes(value any, op string) bool {
	if dynamic.Has(value, op) {
		return true
	}

	return reflect.ValueOf(value).MethodByName(methodName(op)).IsValid()
}

var resolvers = map[Kind]func(value any, o *options) (*Vectorize, error){
	KindGenuine:     resolveGenuine,
	KindCapable:     resolveCapable,
	KindPlainObject: resolvePlainObject,
	KindInvalid:     resolveInvalid,
}

// Resolve wraps a dynamic value in a Vectorize facade.
//
// Genuine bindings and capable objects are wrapped as they are. Plain objects
// are copied and given a describe shim backed by their own fields. Anything
// else fails with a *TypeMismatchError.
func Resolve(value any, opts ...Option) (*Vectorize, error) {
	o := newOptions(opts)

	kind := Classify(value)

	v, err := resolvers[kind](value, o)
	if err != nil {
		o.logger.WithError(err).Debug("binding resolution failed")
		return nil, err
	}

	o.logger.WithField("kind", kind.String()).Debug("binding resolved")

	return v, nil
}

func resolveGenuine(value any, o *options) (*Vectorize, error) {
	return newVectorize(value, KindGenuine, o), nil
}

func resolveCapable(value any, o *options) (*Vectorize, error) {
	return newVectorize(value, KindCapable, o), nil
}

func resolvePlainObject(value any, o *options) (*Vectorize, error) {
	return newVectorize(InstallDescribeShim(value), KindPlainObject, o), nil
}

func resolveInvalid(value any, o *options) (*Vectorize, error) {
	return nil, &TypeMismatchError{
		TypeName: TypeName,
		Actual:   dynamic.TypeOf(value),
	}
}
