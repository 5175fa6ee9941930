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


// Package scheduler drives the asynchronous ingestion of document sources.
//
// A Scheduler polls the document source store for work: sources in the
// Created status and failed sources that are eligible for a retry. Each
// source is processed on a bounded worker pool behind a per-source lease,
// so several scheduler instances can share one store without
// double-processing.
//
// Only one scheduler instance is active per store at a time. Start
// acquires a named lease and returns false when another live instance
// already holds it; the lease expires if that instance dies, letting a
// new one take over.
//
// Failed sources retry with exponential backoff capped at a maximum
// delay, up to a retry budget and only within a retry horizon of their
// last update.
package scheduler
