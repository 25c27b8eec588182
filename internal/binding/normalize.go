package binding

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

// Schema identifies a revision of the describe response shape.
type Schema int

const (
	// SchemaCurrent treats every field as optional and defaults both
	// dimensions (0) and metric ("cosine").
	SchemaCurrent Schema = iota

	// SchemaLegacy is the original five-field shape: name, dimensions,
	// metric, processedVectorsCount and storedVectorsCount. Dimensions and
	// both counts must be present; metric defaults to "cosine".
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return "legacy"
	}
	return "current"
}

// ParseSchema maps a configuration value onto a Schema.
func ParseSchema(val string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "", "current", "v2":
		return SchemaCurrent, nil
	case "legacy", "v1":
		return SchemaLegacy, nil
	}
	return SchemaCurrent, fmt.Errorf("unknown schema: %q", val)
}

type schemaRule struct {
	// required keys must be present in the raw response.
	required []string

	// fill applies the defaults of the revision.
	fill func(d *domain.IndexDetails)
}

var schemaRules = map[Schema]schemaRule{
	SchemaLegacy: {
		required: []string{"dimensions", "processedVectorsCount", "storedVectorsCount"},
		fill: func(d *domain.IndexDetails) {
			// fields added after the first revision are not part of it
			d.Description = nil
			d.VectorCount = nil
			d.ProcessedUpToTime = nil
			d.ProcessedUpToMutation = nil

			fillMetric(d)
			fillZero(&d.Dimensions)
			fillZero(&d.ProcessedVectorsCount)
			fillZero(&d.StoredVectorsCount)
		},
	},

	SchemaCurrent: {
		fill: func(d *domain.IndexDetails) {
			fillMetric(d)
			fillZero(&d.Dimensions)
		},
	},
}

// aliases maps alternate external names onto the canonical ones.
var aliases = map[string]string{
	"processedUpToDatetime": "processedUpToTime",
}

// NormalizeDetails maps a raw describe response onto IndexDetails using the
// rules of the given schema revision.
func NormalizeDetails(raw any, schema Schema) (domain.IndexDetails, error) {
	rule, ok := schemaRules[schema]
	if !ok {
		return domain.IndexDetails{}, fmt.Errorf("unknown schema: %d", schema)
	}

	var details domain.IndexDetails

	md, err := decode(raw, &details)
	if err != nil {
		return domain.IndexDetails{}, err
	}

	for _, key := range rule.required {
		if slices.Contains(md.Unset, key) {
			return domain.IndexDetails{}, fmt.Errorf("missing field `%s`", key)
		}
	}

	rule.fill(&details)

	return details, nil
}

// NormalizeMutation maps a raw insert or upsert response onto Mutation.
func NormalizeMutation(raw any) (domain.Mutation, error) {
	var mutation domain.Mutation

	md, err := decode(raw, &mutation)
	if err != nil {
		return domain.Mutation{}, err
	}

	if slices.Contains(md.Unset, "mutationId") {
		return domain.Mutation{}, errors.New("missing field `mutationId`")
	}

	if mutation.MutationID == "" {
		return domain.Mutation{}, errors.New("empty `mutationId`")
	}

	return mutation, nil
}

func decode(raw any, out any) (*mapstructure.Metadata, error) {
	obj, err := asObject(raw)
	if err != nil {
		return nil, err
	}

	for alias, canonical := range aliases {
		if val, ok := obj[alias]; ok {
			if _, exists := obj[canonical]; !exists {
				obj[canonical] = val
			}
		}
	}

	var md mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		Metadata:   &md,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(unsignedRangeHook),
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(map[string]any(obj)); err != nil {
		return nil, err
	}

	return &md, nil
}

// unsignedRangeHook rejects numbers that do not fit the unsigned target
// exactly. mapstructure would otherwise wrap large values and truncate
// fractions.
func unsignedRangeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	var limit float64
	switch to.Kind() {
	case reflect.Uint32:
		limit = math.MaxUint32
	case reflect.Uint64:
		limit = 1 << 64
	default:
		return data, nil
	}

	f, ok := dynamic.AsNumber(data)
	if !ok {
		return data, nil
	}

	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return nil, fmt.Errorf("invalid value: %v is not a finite number", f)
	case f < 0:
		return nil, fmt.Errorf("invalid value: %v is negative, expected %s", f, to)
	case f != math.Trunc(f):
		return nil, fmt.Errorf("invalid value: %v is not an integer, expected %s", f, to)
	case to.Kind() == reflect.Uint32 && f > limit, to.Kind() == reflect.Uint64 && f >= limit:
		return nil, fmt.Errorf("invalid value: %v out of range for %s", f, to)
	}

	return data, nil
}

// asObject copies the own properties of raw, rejecting anything that is not
// a keyed object.
func asObject(raw any) (dynamic.Object, error) {
	if !dynamic.IsObject(raw) {
		return nil, fmt.Errorf("invalid type: expected an object, got %s", dynamic.TypeOf(raw))
	}

	rv := reflect.Indirect(reflect.ValueOf(raw))
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return nil, errors.New("invalid type: expected an object, got an array")
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("invalid type: expected an object, got a map keyed by %s", rv.Type().Key())
	}

	return dynamic.Assign(raw), nil
}

func fillMetric(d *domain.IndexDetails) {
	if d.Metric == nil {
		d.Metric = domain.Ptr(domain.DefaultMetric)
	}
}

func fillZero(field **uint32) {
	if *field == nil {
		*field = domain.Ptr[uint32](0)
	}
}
