// Package lexical defines the keyword-search side of hybrid retrieval: a
// tokenizer shared by indexing and scoring, and the Index interface the
// query engine consumes.
package lexical
