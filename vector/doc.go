// Package vector provides the vector-search collaborators: a Pinecone index
// client, text embedders, and a Redis-backed embedding cache.
package vector
