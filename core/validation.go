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

import "fmt"

// ValidateDocSourceCreate validates an intake payload according to domain rules.
//
// Validation rules:
//   - URI must not be empty
//   - SourceType must be a known value
//   - KBID must not be empty
//
// NOT validated (populated by the stores):
//   - UUID, timestamps, status
func ValidateDocSourceCreate(create *DocSourceCreate) error {
	if create == nil {
		return fmt.Errorf("%w: create payload is nil", ErrInvalidDocSource)
	}
	if create.URI == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocSource, ErrEmptyURI)
	}
	if err := ValidateSourceType(create.SourceType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocSource, err)
	}
	if create.KBID == "" {
		return fmt.Errorf("%w: kb id cannot be empty", ErrInvalidDocSource)
	}
	return nil
}

// ValidateSourceType validates a DocSourceType value.
func ValidateSourceType(t DocSourceType) error {
	switch t {
	case DocSourceURL, DocSourceSearch, DocSourceLocal:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSourceType, t)
	}
}

// ValidateStatusTransition enforces the monotonic source lifecycle:
//
//	Created -> Processing -> {Completed, Failed}
//	Failed  -> Processing (scheduler retry only)
//
// A transition to the same status is allowed so that status bookkeeping
// stays idempotent under re-delivery.
func ValidateStatusTransition(from, to DocSourceStatus) error {
	if from == to {
		return nil
	}
	allowed := map[DocSourceStatus][]DocSourceStatus{
		DocSourceCreated:    {DocSourceProcessing},
		DocSourceProcessing: {DocSourceCompleted, DocSourceFailed},
		DocSourceFailed:     {DocSourceProcessing},
		DocSourceCompleted:  {},
	}
	for _, next := range allowed[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
}
