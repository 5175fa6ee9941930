// Package openai implements the ai service interfaces against
// OpenAI-compatible APIs via langchaingo.
//
// The package works with the hosted OpenAI API as well as local
// OpenAI-compatible servers (Ollama, LocalAI, vLLM). Constructors return
// interface types; use ai.Config options to point at a different host or
// model.
package openai
