// Package extract turns a loaded product page into flat product records.
//
// Several independent sources read the page: JSON-LD structured data, an
// inline analytics tracking object, the specification table and the visible
// markup. Their partial results are merged in order, the first source to
// resolve a field winning. The merged record is then expanded into one record
// per purchasable variant.
package extract
