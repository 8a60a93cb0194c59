package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Export names one public declaration of a library.
type Export struct {
	Name string      `cbor:"name"`
	ID   int64       `cbor:"id"`
	Kind SectionKind `cbor:"kind"`
}

// LibraryInfo is the export table and dependency list trailing a library
// binary.
type LibraryInfo struct {
	Exports      []Export `cbor:"exports"`
	Dependencies []string `cbor:"dependencies"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes the table to canonical CBOR.
func (l *LibraryInfo) Marshal() ([]byte, error) {
	data, err := cborEncMode.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal export table: %w", err)
	}
	return data, nil
}

// UnmarshalLibraryInfo deserializes an export table.
func UnmarshalLibraryInfo(data []byte) (*LibraryInfo, error) {
	var l LibraryInfo
	if err := cbor.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal export table: %w", err)
	}
	return &l, nil
}

// Lookup finds an export by name.
func (l *LibraryInfo) Lookup(name string) (Export, bool) {
	for _, e := range l.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}
