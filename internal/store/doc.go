// Package store holds the persistent process store: a namespaced, JSON-valued
// view over a durable key/value backend that survives the teardown of every
// page lifetime. Decoding failures never surface; a corrupt value reads back
// as its type's empty default.
package store
