// Copyright 2025 Poiesic Systems
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
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/poiesic/hybridrag/core"
)

var (
	vectorMUS      = core.NewBoundedSliceSer[float32](raw.Float32)
	VectorEntryMUS = vectorEntryMUS{}
)

type vectorEntryMUS struct{}

func (s vectorEntryMUS) Marshal(v VectorEntry, bs []byte) (n int) {
	n = core.IDMUS.Marshal(v.ID, bs)
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += core.DocumentTypeMUS.Marshal(v.Type, bs[n:])
	return n + ord.String.Marshal(v.Source, bs[n:])
}

func (s vectorEntryMUS) Unmarshal(bs []byte) (v VectorEntry, n int, err error) {
	v.ID, n, err = core.IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type, n1, err = core.DocumentTypeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s vectorEntryMUS) Size(v VectorEntry) (size int) {
	size = core.IDMUS.Size(v.ID)
	size += vectorMUS.Size(v.Vector)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Title)
	size += core.DocumentTypeMUS.Size(v.Type)
	return size + ord.String.Size(v.Source)
}

func (s vectorEntryMUS) Skip(bs []byte) (n int, err error) {
	n, err = core.IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = vectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for range 4 {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := core.IDMUS.Unmarshal(data)
	return id, err
}

// MarshalVectorEntry serializes a VectorEntry to bytes.
func MarshalVectorEntry(entry *VectorEntry) []byte {
	buf := make([]byte, VectorEntryMUS.Size(*entry))
	VectorEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalVectorEntry deserializes a VectorEntry from bytes.
func UnmarshalVectorEntry(data []byte) (*VectorEntry, error) {
	entry, _, err := VectorEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &entry, nil
}
