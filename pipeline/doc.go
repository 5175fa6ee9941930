// Package pipeline turns a document source into embedded, queryable
// document chunks.
//
// The Driver type runs the stages for a single source: fetching raw
// content, converting it to plain text, splitting it into chunks,
// generating embeddings, and persisting the results. Search-backed
// sources first fan out through a web retriever and then process each
// result page.
//
// Stage failures are reported as *Failure values naming the stage, so
// callers can log and retry appropriately.
package pipeline
