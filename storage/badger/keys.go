package badger

import (
	"github.com/poiesic/docket/core"
)

// Keys have the form prefix:collection:path. Collection names cannot
// contain the separator, so one collection's keys never share a scan
// prefix with another's.

// makeCollectionPrefix generates the key prefix shared by a collection.
// Format: prefix:collection:
func makeCollectionPrefix(prefix string, col core.Collection) []byte {
	return []byte(prefix + core.PathSeparator + col.Name + core.PathSeparator)
}

// makeDocKey generates the key for one document.
// Format: prefix:collection:path
func makeDocKey(prefix string, col core.Collection, path core.Path) []byte {
	return append(makeCollectionPrefix(prefix, col), path.Join()...)
}

// makeScanPrefix generates the iteration prefix for ListUnder. The root
// path scans the whole collection.
func makeScanPrefix(prefix string, col core.Collection, pathPrefix core.Path) []byte {
	return append(makeCollectionPrefix(prefix, col), pathPrefix.Join()...)
}
