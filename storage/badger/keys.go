package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/quarrylabs/quarry/core"
)

// Key prefixes for different record types
const (
	docSourcePrefix       = "dsrc"
	docSinkPrefix         = "dsnk"
	docSinkSourcePrefix   = "dsnks" // docsource -> docsink index
	documentPrefix        = "doc"
	documentSourcePrefix  = "docs" // docsource -> document index
	documentFingerPrefix  = "docf" // fingerprint -> document index
	lockPrefix            = "lock"
)

// makeDocSourceKey generates a key for a document source by UUID.
func makeDocSourceKey(uuid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", docSourcePrefix, uuid))
}

// makeDocSinkKey generates a key for a docsink by UUID.
func makeDocSinkKey(uuid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", docSinkPrefix, uuid))
}

// makeDocSinkSourceKey generates a composite key for the source index.
// Format: prefix:docsourceUUID:docsinkUUID
func makeDocSinkSourceKey(docSourceUUID, docSinkUUID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", docSinkSourcePrefix, docSourceUUID, docSinkUUID))
}

// makePartialDocSinkSourceKey generates an iteration prefix for one source's sinks.
func makePartialDocSinkSourceKey(docSourceUUID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", docSinkSourcePrefix, docSourceUUID))
}

// makeDocumentKey generates a key for a document by UUID.
func makeDocumentKey(uuid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, uuid))
}

// makeDocumentSourceKey generates a composite key for the source index.
// Format: prefix:docsourceUUID:documentUUID
func makeDocumentSourceKey(docSourceUUID, documentUUID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentSourcePrefix, docSourceUUID, documentUUID))
}

// makePartialDocumentSourceKey generates an iteration prefix for one source's documents.
func makePartialDocumentSourceKey(docSourceUUID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentSourcePrefix, docSourceUUID))
}

// makeDocumentFingerprintKey generates a composite key for the fingerprint index.
// Format: prefix:kbID:fingerprint (BigEndian so the keyspace stays ordered)
func makeDocumentFingerprintKey(kbID string, fingerprint core.ID) []byte {
	prefix := fmt.Sprintf("%s:%s:", documentFingerPrefix, kbID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(fingerprint))
	return buf
}

// makeLockKey generates a key for a named lock record.
func makeLockKey(name string) []byte {
	return []byte(fmt.Sprintf("%s:%s", lockPrefix, name))
}
