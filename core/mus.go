package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the records persisted by the stores.
// Field order is part of the storage format; append new fields at the end.

var (
	// IDMUS serializes content fingerprint IDs.
	IDMUS = idSer{}
	// DocSourceMUS serializes document sources.
	DocSourceMUS = docSourceSer{}
	// DocSinkMUS serializes raw content sinks.
	DocSinkMUS = docSinkSer{}
	// DocumentMUS serializes ingested document chunks.
	DocumentMUS = documentSer{}
	// LockRecordMUS serializes named lock records.
	LockRecordMUS = lockRecordSer{}

	vectorMUS    = ord.NewSliceSer[float32](varint.Float32)
	stringMapMUS = ord.NewMapSer[string, string](ord.String, ord.String)
)

type idSer struct{}

func (idSer) Marshal(id ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(id), bs)
}

func (idSer) Unmarshal(bs []byte) (ID, int, error) {
	v, n, err := varint.Uint64.Unmarshal(bs)
	return ID(v), n, err
}

func (idSer) Size(id ID) int {
	return varint.Uint64.Size(uint64(id))
}

func (s idSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

// Timestamps are stored as Unix microseconds.

func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

type docSourceSer struct{}

func (docSourceSer) Marshal(d DocSource, bs []byte) (n int) {
	n = ord.String.Marshal(d.UUID, bs)
	n += ord.String.Marshal(d.OrgID, bs[n:])
	n += ord.String.Marshal(d.KBID, bs[n:])
	n += varint.Int.Marshal(int(d.SourceType), bs[n:])
	n += ord.String.Marshal(d.URI, bs[n:])
	n += ord.String.Marshal(d.DisplayName, bs[n:])
	n += varint.Int.Marshal(int(d.Status), bs[n:])
	n += stringMapMUS.Marshal(d.Ingest.FlowOptions, bs[n:])
	n += stringMapMUS.Marshal(d.Ingest.ExtraParameters, bs[n:])
	n += varint.Int.Marshal(d.RetryCount, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (docSourceSer) Unmarshal(bs []byte) (d DocSource, n int, err error) {
	var n1 int
	if d.UUID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.OrgID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.KBID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	var v int
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.SourceType = DocSourceType(v)
	n += n1
	if d.URI, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.DisplayName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if v, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	d.Status = DocSourceStatus(v)
	n += n1
	if d.Ingest.FlowOptions, n1, err = stringMapMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Ingest.ExtraParameters, n1, err = stringMapMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.RetryCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (docSourceSer) Size(d DocSource) (size int) {
	size = ord.String.Size(d.UUID)
	size += ord.String.Size(d.OrgID)
	size += ord.String.Size(d.KBID)
	size += varint.Int.Size(int(d.SourceType))
	size += ord.String.Size(d.URI)
	size += ord.String.Size(d.DisplayName)
	size += varint.Int.Size(int(d.Status))
	size += stringMapMUS.Size(d.Ingest.FlowOptions)
	size += stringMapMUS.Size(d.Ingest.ExtraParameters)
	size += varint.Int.Size(d.RetryCount)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.UpdatedAt)
	return size
}

func (s docSourceSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type docSinkSer struct{}

func (docSinkSer) Marshal(d DocSink, bs []byte) (n int) {
	n = ord.String.Marshal(d.UUID, bs)
	n += ord.String.Marshal(d.DocSourceUUID, bs[n:])
	n += ord.String.Marshal(d.KBID, bs[n:])
	n += ord.String.Marshal(d.RawURI, bs[n:])
	n += ord.String.Marshal(d.Content, bs[n:])
	n += IDMUS.Marshal(d.Fingerprint, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	return n
}

func (docSinkSer) Unmarshal(bs []byte) (d DocSink, n int, err error) {
	var n1 int
	if d.UUID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.DocSourceUUID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.KBID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.RawURI, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Fingerprint, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (docSinkSer) Size(d DocSink) (size int) {
	size = ord.String.Size(d.UUID)
	size += ord.String.Size(d.DocSourceUUID)
	size += ord.String.Size(d.KBID)
	size += ord.String.Size(d.RawURI)
	size += ord.String.Size(d.Content)
	size += IDMUS.Size(d.Fingerprint)
	size += sizeTime(d.CreatedAt)
	return size
}

func (s docSinkSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type documentSer struct{}

func (documentSer) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.UUID, bs)
	n += ord.String.Marshal(d.DocSinkUUID, bs[n:])
	n += ord.String.Marshal(d.DocSourceUUID, bs[n:])
	n += ord.String.Marshal(d.KBID, bs[n:])
	n += ord.String.Marshal(d.Content, bs[n:])
	n += vectorMUS.Marshal(d.Vector, bs[n:])
	n += IDMUS.Marshal(d.Fingerprint, bs[n:])
	n += marshalTime(d.CreatedAt, bs[n:])
	n += marshalTime(d.UpdatedAt, bs[n:])
	return n
}

func (documentSer) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	if d.UUID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if d.DocSinkUUID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.DocSourceUUID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.KBID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Content, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.Fingerprint, n1, err = IDMUS.Unmarshal(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	if d.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return d, n + n1, err
	}
	n += n1
	return d, n, nil
}

func (documentSer) Size(d Document) (size int) {
	size = ord.String.Size(d.UUID)
	size += ord.String.Size(d.DocSinkUUID)
	size += ord.String.Size(d.DocSourceUUID)
	size += ord.String.Size(d.KBID)
	size += ord.String.Size(d.Content)
	size += vectorMUS.Size(d.Vector)
	size += IDMUS.Size(d.Fingerprint)
	size += sizeTime(d.CreatedAt)
	size += sizeTime(d.UpdatedAt)
	return size
}

func (s documentSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type lockRecordSer struct{}

func (lockRecordSer) Marshal(l LockRecord, bs []byte) (n int) {
	n = ord.String.Marshal(l.Name, bs)
	n += ord.String.Marshal(l.Token, bs[n:])
	n += marshalTime(l.ExpiresAt, bs[n:])
	return n
}

func (lockRecordSer) Unmarshal(bs []byte) (l LockRecord, n int, err error) {
	var n1 int
	if l.Name, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if l.Token, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1
	if l.ExpiresAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return l, n + n1, err
	}
	n += n1
	return l, n, nil
}

func (lockRecordSer) Size(l LockRecord) (size int) {
	size = ord.String.Size(l.Name)
	size += ord.String.Size(l.Token)
	size += sizeTime(l.ExpiresAt)
	return size
}

func (s lockRecordSer) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}
