// Copyright 2025 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Error taxonomy shared across the scheduler, pipeline and flow engine.
var (
	// ErrConfigValue indicates a missing or invalid required setting.
	// Configuration errors fail fast, before any work is scheduled.
	ErrConfigValue = errors.New("invalid configuration value")

	// ErrMissingParameters indicates an unresolved template or option variable.
	ErrMissingParameters = errors.New("missing required parameter")

	// ErrMissingDependency indicates a step was registered before one of its
	// declared dependencies.
	ErrMissingDependency = errors.New("missing component dependency")

	// ErrLeaseHeld is the benign outcome of losing a lease race: another
	// worker or process already owns the task.
	ErrLeaseHeld = errors.New("lease held by another worker")

	// ErrCallFailure indicates a vendor API (inference, embedding, search) error.
	ErrCallFailure = errors.New("api call failed")

	// ErrUnexpectedCase indicates an invariant violation, such as a flow
	// invoked without its query item.
	ErrUnexpectedCase = errors.New("unexpected case")

	// ErrInvalidStatusTransition indicates an attempt to move a document
	// source backwards in its lifecycle.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrInvalidDocSource indicates a DocSource failed validation.
	ErrInvalidDocSource = errors.New("invalid document source")

	// ErrEmptyURI indicates the URI field is empty.
	ErrEmptyURI = errors.New("uri cannot be empty")

	// ErrInvalidSourceType indicates an invalid DocSourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")
)
