// Package web provides web search retrievers for search-backed document
// sources.
//
// A Retriever turns a query string into a list of result pages. Retrievers
// are registered by name so a search URI like
//
//	search://google?q=geothermal+energy&ts=1724800000000
//
// can be dispatched to the matching backend. The package ships a Google
// Programmable Search implementation and a static retriever for tests.
package web
