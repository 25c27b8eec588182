//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/sirupsen/logrus"

	"vecbind/internal/binding"
	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

// maxDepth bounds the conversion of nested JS values.
const maxDepth = 32

var ops = []string{"describe", "insert", "upsert"}

func main() {
	c := make(chan struct{})

	js.Global().Set("vecbindDescribe", js.FuncOf(describeBinding))
	js.Global().Set("vecbindInsert", js.FuncOf(writeBinding(false)))
	js.Global().Set("vecbindUpsert", js.FuncOf(writeBinding(true)))

	<-c
}

// describeBinding(binding, [schema]) resolves to the index details as JSON.
func describeBinding(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return rejected("usage: vecbindDescribe(binding, [schema])")
	}

	v, err := resolve(args)
	if err != nil {
		return rejected(err.Error())
	}

	return promise(func(ctx context.Context) (interface{}, error) {
		details, err := v.Describe(ctx)
		if err != nil {
			return nil, err
		}
		return makeResult(details)
	})
}

// writeBinding returns vecbindInsert/vecbindUpsert(binding, vectors, [schema]),
// which resolve to the mutation as JSON.
func writeBinding(upsert bool) func(this js.Value, args []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return rejected("usage: vecbindInsert(binding, vectors, [schema])")
		}

		vectors, err := parseVectors(args[1])
		if err != nil {
			return rejected("invalid vectors: " + err.Error())
		}

		v, err := resolve(append([]js.Value{args[0]}, args[2:]...))
		if err != nil {
			return rejected(err.Error())
		}

		write := v.Insert
		if upsert {
			write = v.Upsert
		}

		return promise(func(ctx context.Context) (interface{}, error) {
			mutation, err := write(ctx, vectors)
			if err != nil {
				return nil, err
			}
			return makeResult(mutation)
		})
	}
}

func resolve(args []js.Value) (*binding.Vectorize, error) {
	opts := []binding.Option{binding.WithLogger(logrus.StandardLogger())}

	if len(args) > 1 && args[1].Type() == js.TypeString {
		schema, err := binding.ParseSchema(args[1].String())
		if err != nil {
			return nil, err
		}
		opts = append(opts, binding.WithSchema(schema))
	}

	return binding.Resolve(toDynamic(args[0], 0), opts...)
}

// parseVectors accepts a JSON string or an array of vector objects.
func parseVectors(v js.Value) ([]domain.Vector, error) {
	text := v
	if v.Type() != js.TypeString {
		text = js.Global().Get("JSON").Call("stringify", v)
	}

	var vectors []domain.Vector
	if err := json.Unmarshal([]byte(text.String()), &vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// toDynamic converts a JS value into the dynamic value model. Functions become
// dynamic.Func values that await returned promises; instances of the host's
// VectorizeIndex class become genuine bindings.
func toDynamic(v js.Value, depth int) any {
	switch v.Type() {
	case js.TypeUndefined:
		return dynamic.Undefined
	case js.TypeNull:
		return nil
	case js.TypeBoolean:
		return v.Bool()
	case js.TypeNumber:
		return v.Float()
	case js.TypeString:
		return v.String()
	case js.TypeFunction:
		return jsFunc(js.Undefined(), v)
	}

	if depth >= maxDepth {
		return dynamic.Object{}
	}

	if js.Global().Get("Array").Call("isArray", v).Bool() {
		out := make([]any, v.Length())
		for i := range out {
			out[i] = toDynamic(v.Index(i), depth+1)
		}
		return out
	}

	if class := js.Global().Get("VectorizeIndex"); class.Type() == js.TypeFunction && v.InstanceOf(class) {
		return &jsIndex{obj: v}
	}

	obj := dynamic.Object{}
	keys := js.Global().Get("Object").Call("keys", v)
	for i := 0; i < keys.Length(); i++ {
		key := keys.Index(i).String()
		prop := v.Get(key)
		if prop.Type() == js.TypeFunction {
			obj[key] = jsFunc(v, prop)
			continue
		}
		obj[key] = toDynamic(prop, depth+1)
	}

	// prototype methods are not own keys
	for _, op := range ops {
		if _, ok := obj[op]; ok {
			continue
		}
		if prop := v.Get(op); prop.Type() == js.TypeFunction {
			obj[op] = jsFunc(v, prop)
		}
	}

	return obj
}

func jsFunc(this, fn js.Value) dynamic.Func {
	return func(ctx context.Context, args ...any) (any, error) {
		jsArgs := make([]interface{}, len(args))
		for i, arg := range args {
			val, err := toJS(arg)
			if err != nil {
				return nil, err
			}
			jsArgs[i] = val
		}

		result, err := invoke(this, fn, jsArgs)
		if err != nil {
			return nil, err
		}

		result, err = await(ctx, result)
		if err != nil {
			return nil, err
		}
		return toDynamic(result, 0), nil
	}
}

// invoke calls fn with this, turning a synchronous throw into an error.
func invoke(this, fn js.Value, args []interface{}) (result js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	return fn.Call("apply", this, js.ValueOf(args)), nil
}

// await blocks until a thenable settles. Other values are returned as is.
func await(ctx context.Context, v js.Value) (js.Value, error) {
	if v.Type() != js.TypeObject || v.Get("then").Type() != js.TypeFunction {
		return v, nil
	}

	done := make(chan js.Value, 1)
	failed := make(chan js.Value, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		done <- arg0(args)
		return nil
	})
	defer onResolve.Release()

	onReject := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		failed <- arg0(args)
		return nil
	})
	defer onReject.Release()

	v.Call("then", onResolve, onReject)

	select {
	case result := <-done:
		return result, nil
	case reason := <-failed:
		return js.Undefined(), jsError(reason)
	case <-ctx.Done():
		return js.Undefined(), ctx.Err()
	}
}

func arg0(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}

func jsError(reason js.Value) error {
	if reason.Type() == js.TypeObject {
		if msg := reason.Get("message"); msg.Type() == js.TypeString {
			return errors.New(msg.String())
		}
	}
	return errors.New(reason.String())
}

// toJS converts a dynamic value into a JS value.
func toJS(v any) (js.Value, error) {
	plain, err := dynamic.Plain(v)
	if err != nil {
		return js.Undefined(), err
	}

	data, err := json.Marshal(plain)
	if err != nil {
		return js.Undefined(), err
	}
	return js.Global().Get("JSON").Call("parse", string(data)), nil
}

// jsIndex is a genuine binding backed by an instance of the host's
// VectorizeIndex class.
type jsIndex struct {
	obj js.Value
}

func (i *jsIndex) Describe(ctx context.Context) (any, error) {
	return jsFunc(i.obj, i.obj.Get("describe"))(ctx)
}

func (i *jsIndex) Insert(ctx context.Context, vectors []any) (any, error) {
	return jsFunc(i.obj, i.obj.Get("insert"))(ctx, vectors)
}

func (i *jsIndex) Upsert(ctx context.Context, vectors []any) (any, error) {
	return jsFunc(i.obj, i.obj.Get("upsert"))(ctx, vectors)
}

// promise runs fn on its own goroutine and settles a JS promise with its
// result, so awaited host promises do not block the event loop.
func promise(fn func(ctx context.Context) (interface{}, error)) interface{} {
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolveFn, rejectFn := args[0], args[1]

		go func() {
			defer executor.Release()

			result, err := fn(context.Background())
			if err != nil {
				rejectFn.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolveFn.Invoke(result)
		}()

		return nil
	})

	return js.Global().Get("Promise").New(executor)
}

func rejected(msg string) interface{} {
	return js.Global().Get("Promise").Call("reject", js.Global().Get("Error").New(msg))
}

func makeResult(data interface{}) (interface{}, error) {
	result, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(result), nil
}
