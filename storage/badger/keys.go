package badger

import (
	"strconv"

	"github.com/poiesic/hybridrag/core"
)

const vectorPrefix = "vec"

// makeCollectionPrefix returns the key prefix shared by every entry of a collection.
// Format: vec:collection:
func makeCollectionPrefix(collection string) []byte {
	return []byte(vectorPrefix + ":" + collection + ":")
}

// makeVectorKey generates a key for a vector entry. The id is written as a
// decimal string, the form the collection uses as its external key.
// Format: vec:collection:id
func makeVectorKey(collection string, id core.ID) []byte {
	prefix := makeCollectionPrefix(collection)
	return strconv.AppendUint(prefix, uint64(id), 10)
}
