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


// Package flow executes query flows: fixed, human-authored sequences of
// steps that turn a chat query into a ChatQueryResult.
//
// Components — steps and flows — are registered by name in a Registry.
// Each component declares option schemas and the names of the components
// it depends on. Dependencies are not a runtime execution graph: each
// flow hard-codes the order in which it invokes its steps. Declarations
// serve two purposes only: aggregating the option schemas a caller can
// set, and failing fast at registration when a dependency is missing.
//
// Option resolution merges caller-supplied values over declared
// defaults. Unknown names and type mismatches are rejected before any
// step runs; a required option with no value fails resolution with
// core.ErrMissingParameters.
//
// A step error aborts the flow: Run marks any document source the flow
// created as failed and returns the step error to the caller. There is
// no partial-success flow result, though documents ingested before the
// failure remain queryable.
package flow
