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


// Package search provides semantic retrieval over a knowledge base.
//
// The Searcher type ranks document chunks against a query by combining:
//   - Semantic similarity using vector embeddings
//   - Verbatim keyword matching with stop-word filtering
//
// Results are scored and ranked so the most relevant chunks can be fed
// into answer generation.
package search
