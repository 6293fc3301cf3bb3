// Package core contains the shared data model and capability interfaces used
// by every other ragmesh package: queue records with channel correlation,
// retrieved chunks, the error taxonomy, and the external collaborator
// interfaces (Embedder, VectorIndex, Completer, DeliveryChannel).
//
// Keeping these in one leaf package avoids import cycles between the queue,
// retrieval, generation and pipeline layers while letting callers implement
// any collaborator with their own types.
package core
