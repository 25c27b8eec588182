package domain

// DefaultMetric is the distance metric reported when a describe response
// omits one.
const DefaultMetric = "cosine"

// Vector is a single record submitted to an index.
type Vector struct {
	ID        string    `json:"id" mapstructure:"id"`
	Values    []float64 `json:"values" mapstructure:"values"`
	Metadata  any       `json:"metadata,omitempty" mapstructure:"metadata"`
	Namespace *string   `json:"namespace,omitempty" mapstructure:"namespace"`
}

// Mutation is the handle returned by the index for an asynchronous write.
// It does not mean the write has been applied yet.
type Mutation struct {
	MutationID string `json:"mutationId" mapstructure:"mutationId"`
}

// IndexDetails describes the current state of an index. Fields are optional
// because the set of reported fields grew over time.
type IndexDetails struct {
	Name                  *string `json:"name" mapstructure:"name"`
	Description           *string `json:"description,omitempty" mapstructure:"description"`
	Dimensions            *uint32 `json:"dimensions,omitempty" mapstructure:"dimensions"`
	Metric                *string `json:"metric,omitempty" mapstructure:"metric"`
	ProcessedVectorsCount *uint32 `json:"processedVectorsCount,omitempty" mapstructure:"processedVectorsCount"`
	StoredVectorsCount    *uint32 `json:"storedVectorsCount,omitempty" mapstructure:"storedVectorsCount"`
	VectorCount           *uint32 `json:"vectorCount,omitempty" mapstructure:"vectorCount"`
	ProcessedUpToTime     *uint64 `json:"processedUpToTime,omitempty" mapstructure:"processedUpToTime"`
	ProcessedUpToMutation *string `json:"processedUpToMutation,omitempty" mapstructure:"processedUpToMutation"`
}

// DimensionsOrZero returns the reported dimensions, or 0 when absent.
func (d IndexDetails) DimensionsOrZero() uint32 {
	if d.Dimensions == nil {
		return 0
	}
	return *d.Dimensions
}

// MetricOrDefault returns the reported metric, or DefaultMetric when absent.
func (d IndexDetails) MetricOrDefault() string {
	if d.Metric == nil {
		return DefaultMetric
	}
	return *d.Metric
}

// Ptr returns a pointer to v. Handy for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
