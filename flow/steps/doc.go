// Package steps provides the step components that flows compose.
//
// Each step is a stateless component: it declares its option schema and
// dependencies for the registry, and exposes a Run method taking the
// per-request ExecInfo plus explicit arguments. Steps are invoked
// synchronously in the order their flow hard-codes.
package steps
