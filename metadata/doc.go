// Package metadata provides typed payload documents and filter evaluation.
//
// Payloads are flat documents mapping string keys to small typed values.
// Filters expose a boolean contract only: a FilterSet either matches a
// point or it does not. Richer filter semantics (indexes, planning) are
// the concern of the segment implementation, not of this package.
package metadata
