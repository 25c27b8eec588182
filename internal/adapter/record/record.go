// Package record holds the wire-level pieces shared by the local index hosts:
// decoding submitted vector records and building describe and mutation
// responses.
package record

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"vecbind/internal/domain"
	"vecbind/internal/dynamic"
)

// IndexInfo is the static description of a hosted index.
type IndexInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Dimensions  uint32 `json:"dimensions"`
	Metric      string `json:"metric"`
}

// Mutation is a write accepted by a host.
type Mutation struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	Count int    `json:"count"`
	Time  int64  `json:"time"`
}

// NewMutation records a write of count vectors at now.
func NewMutation(op string, count int, now time.Time) Mutation {
	return Mutation{
		ID:    uuid.NewString(),
		Op:    op,
		Count: count,
		Time:  now.UnixMilli(),
	}
}

// Response is the dynamic value returned for an accepted write.
func (m Mutation) Response() dynamic.Object {
	return dynamic.Object{
		"mutationId": m.ID,
	}
}

// Describe builds the describe response of a host holding count vectors with
// last as its most recent write.
func Describe(info IndexInfo, count int, last *Mutation) dynamic.Object {
	metric := info.Metric
	if metric == "" {
		metric = domain.DefaultMetric
	}

	details := dynamic.Object{
		"name":                  info.Name,
		"dimensions":            info.Dimensions,
		"metric":                metric,
		"vectorCount":           count,
		"processedVectorsCount": count,
		"storedVectorsCount":    count,
	}

	if info.Description != "" {
		details["description"] = info.Description
	}

	if last != nil {
		details["processedUpToMutation"] = last.ID
		details["processedUpToTime"] = last.Time
	}

	return details
}

// DecodeVectors maps submitted records onto vectors and checks them against
// the index dimensions. A dimensions value of 0 accepts any length.
func DecodeVectors(records []any, dimensions uint32) ([]domain.Vector, error) {
	vectors := make([]domain.Vector, 0, len(records))

	for i, raw := range records {
		var vec domain.Vector

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:  &vec,
			TagName: "mapstructure",
		})
		if err != nil {
			return nil, err
		}

		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}

		if vec.ID == "" {
			return nil, fmt.Errorf("vector %d: missing id", i)
		}

		if dimensions > 0 && len(vec.Values) != int(dimensions) {
			return nil, fmt.Errorf("vector %q: dimension mismatch: expected %d, got %d", vec.ID, dimensions, len(vec.Values))
		}

		vectors = append(vectors, vec)
	}

	return vectors, nil
}
