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


package core

import (
	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	mapops "github.com/mus-format/mus-go/options/map"
	slops "github.com/mus-format/mus-go/options/slice"
)

// LenWithin returns a length validator that rejects lengths above limit.
// Every encoded element takes at least one byte, so the number of bytes left
// to decode bounds any well-formed length prefix.
func LenWithin(limit int) com.Validator[int] {
	return com.ValidatorFn[int](func(length int) error {
		if length > limit {
			return com.ErrTooLargeLength
		}
		return nil
	})
}

// BoundedSliceSer is a slice serializer whose Unmarshal refuses length
// prefixes larger than the input, so corrupt data fails with an error
// instead of an oversized allocation.
type BoundedSliceSer[T any] struct {
	elem mus.Serializer[T]
}

func NewBoundedSliceSer[T any](elem mus.Serializer[T]) BoundedSliceSer[T] {
	return BoundedSliceSer[T]{elem: elem}
}

func (s BoundedSliceSer[T]) Marshal(v []T, bs []byte) (n int) {
	return ord.NewSliceSer[T](s.elem).Marshal(v, bs)
}

func (s BoundedSliceSer[T]) Unmarshal(bs []byte) (v []T, n int, err error) {
	return ord.NewValidSliceSer[T](s.elem,
		slops.WithLenValidator[T](LenWithin(len(bs)))).Unmarshal(bs)
}

func (s BoundedSliceSer[T]) Size(v []T) (size int) {
	return ord.NewSliceSer[T](s.elem).Size(v)
}

func (s BoundedSliceSer[T]) Skip(bs []byte) (n int, err error) {
	return ord.NewSliceSer[T](s.elem).Skip(bs)
}

// BoundedMapSer is the map counterpart of BoundedSliceSer.
type BoundedMapSer[K comparable, V any] struct {
	key   mus.Serializer[K]
	value mus.Serializer[V]
}

func NewBoundedMapSer[K comparable, V any](key mus.Serializer[K], value mus.Serializer[V]) BoundedMapSer[K, V] {
	return BoundedMapSer[K, V]{key: key, value: value}
}

func (s BoundedMapSer[K, V]) Marshal(v map[K]V, bs []byte) (n int) {
	return ord.NewMapSer[K, V](s.key, s.value).Marshal(v, bs)
}

func (s BoundedMapSer[K, V]) Unmarshal(bs []byte) (v map[K]V, n int, err error) {
	return ord.NewValidMapSer[K, V](s.key, s.value,
		mapops.WithLenValidator[K, V](LenWithin(len(bs)))).Unmarshal(bs)
}

func (s BoundedMapSer[K, V]) Size(v map[K]V) (size int) {
	return ord.NewMapSer[K, V](s.key, s.value).Size(v)
}

func (s BoundedMapSer[K, V]) Skip(bs []byte) (n int, err error) {
	return ord.NewMapSer[K, V](s.key, s.value).Skip(bs)
}
