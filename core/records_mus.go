package core

import (
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Serializers for the persisted core types. They follow the layout musgen
// would emit: fields in declaration order, varints for integers and
// length prefixed strings.

var (
	IDMUS           = idMUS{}
	DocumentTypeMUS = documentTypeMUS{}
	DocumentMUS     = documentMUS{}
	DocumentsMUS    = NewBoundedSliceSer[Document](DocumentMUS)
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	tmp, n, err := varint.Uint64.Unmarshal(bs)
	v = ID(tmp)
	return
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

type documentTypeMUS struct{}

func (s documentTypeMUS) Marshal(v DocumentType, bs []byte) (n int) {
	return ord.String.Marshal(string(v), bs)
}

func (s documentTypeMUS) Unmarshal(bs []byte) (v DocumentType, n int, err error) {
	tmp, n, err := ord.String.Unmarshal(bs)
	v = DocumentType(tmp)
	return
}

func (s documentTypeMUS) Size(v DocumentType) (size int) {
	return ord.String.Size(string(v))
}

func (s documentTypeMUS) Skip(bs []byte) (n int, err error) {
	return ord.String.Skip(bs)
}

type documentMUS struct{}

func (s documentMUS) Marshal(v Document, bs []byte) (n int) {
	n = IDMUS.Marshal(v.ID, bs)
	n += DocumentTypeMUS.Marshal(v.Type, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	return n + ord.String.Marshal(v.Source, bs[n:])
}

func (s documentMUS) Unmarshal(bs []byte) (v Document, n int, err error) {
	v.ID, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Type, n1, err = DocumentTypeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s documentMUS) Size(v Document) (size int) {
	size = IDMUS.Size(v.ID)
	size += DocumentTypeMUS.Size(v.Type)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Content)
	return size + ord.String.Size(v.Source)
}

func (s documentMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	for range 4 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
