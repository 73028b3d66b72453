// Package model defines core types shared across fusego.
//
//   - Document: a corpus item (id, text, scalar metadata)
//   - Embedder: the external embedding model contract
//
// The engine identifies documents internally by their position in the
// indexed corpus; Document.ID is only resolved back at the API boundary.
package model
