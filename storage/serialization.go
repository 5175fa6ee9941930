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


package storage

import (
	"github.com/quarrylabs/quarry/core"
)

// MarshalDocSource serializes a DocSource to bytes.
func MarshalDocSource(source *core.DocSource) []byte {
	buf := make([]byte, core.DocSourceMUS.Size(*source))
	core.DocSourceMUS.Marshal(*source, buf)
	return buf
}

// UnmarshalDocSource deserializes a DocSource from bytes.
func UnmarshalDocSource(data []byte) (*core.DocSource, error) {
	source, _, err := core.DocSourceMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &source, nil
}

// MarshalDocSink serializes a DocSink to bytes.
func MarshalDocSink(sink *core.DocSink) []byte {
	buf := make([]byte, core.DocSinkMUS.Size(*sink))
	core.DocSinkMUS.Marshal(*sink, buf)
	return buf
}

// UnmarshalDocSink deserializes a DocSink from bytes.
func UnmarshalDocSink(data []byte) (*core.DocSink, error) {
	sink, _, err := core.DocSinkMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &sink, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	buf := make([]byte, core.DocumentMUS.Size(*doc))
	core.DocumentMUS.Marshal(*doc, buf)
	return buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	doc, _, err := core.DocumentMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarshalLockRecord serializes a LockRecord to bytes.
func MarshalLockRecord(lock *core.LockRecord) []byte {
	buf := make([]byte, core.LockRecordMUS.Size(*lock))
	core.LockRecordMUS.Marshal(*lock, buf)
	return buf
}

// UnmarshalLockRecord deserializes a LockRecord from bytes.
func UnmarshalLockRecord(data []byte) (*core.LockRecord, error) {
	lock, _, err := core.LockRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &lock, nil
}
