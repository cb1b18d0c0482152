package core

import (
	"errors"
	"testing"

	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

func encodedLength(n uint64) []byte {
	buf := make([]byte, varint.Uint64.Size(n))
	varint.Uint64.Marshal(n, buf)
	return buf
}

func TestBoundedSliceSer_RejectsOversizedLength(t *testing.T) {
	_, _, err := DocumentsMUS.Unmarshal(encodedLength(1 << 62))
	if !errors.Is(err, com.ErrTooLargeLength) {
		t.Fatalf("Unmarshal() error = %v, want %v", err, com.ErrTooLargeLength)
	}

	// The count fits the input but the elements do not.
	_, _, err = NewBoundedSliceSer[ID](IDMUS).Unmarshal([]byte{3, 1})
	if err == nil {
		t.Fatal("Unmarshal() accepted a truncated slice")
	}
}

func TestBoundedMapSer(t *testing.T) {
	ser := NewBoundedMapSer[string, int](ord.String, varint.PositiveInt)

	m := map[string]int{"iron": 2, "ferritin": 1}
	buf := make([]byte, ser.Size(m))
	ser.Marshal(m, buf)

	got, n, err := ser.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if n != len(buf) || len(got) != 2 || got["iron"] != 2 || got["ferritin"] != 1 {
		t.Errorf("Unmarshal() = %v (%d bytes), want %v (%d bytes)", got, n, m, len(buf))
	}

	_, _, err = ser.Unmarshal(encodedLength(1 << 62))
	if !errors.Is(err, com.ErrTooLargeLength) {
		t.Errorf("Unmarshal() error = %v, want %v", err, com.ErrTooLargeLength)
	}
}
