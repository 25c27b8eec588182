// Package binding turns a dynamic vector index binding into the typed
// Vectorize facade.
//
// Resolution follows a fixed decision table:
//   - values implementing port.VectorizeIndex are wrapped directly
//   - objects exposing describe, insert or upsert are wrapped unchanged
//   - other objects are copied and given a describe shim built from their
//     name, dimensions, metric, processedVectorsCount and storedVectorsCount
//   - everything else fails with ErrTypeMismatch
//
// Responses are normalized per schema revision: metric always defaults to
// "cosine" and, in the current revision, dimensions defaults to 0.
package binding
