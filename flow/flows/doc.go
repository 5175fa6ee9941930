// Package flows contains the built-in query flows: answer, a single
// conversational reply grounded in freshly ingested search results, and
// research, a sectioned article planned topic by topic.
//
// Flows hard-code the order in which they call their steps; DependsOn
// declares the steps so that option schemas aggregate and registration
// fails fast on a missing step.
package flows
