package bytecode

import (
	"encoding/binary"
	"fmt"
)

// FormatVersion is the current binary format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint32 = 1

// Magic bytes: "BGSL" for scripts, "BGLL" for libraries.
var (
	ScriptMagic  = []byte{'B', 'G', 'S', 'L'}
	LibraryMagic = []byte{'B', 'G', 'L', 'L'}
)

// SectionKind identifies what a section holds.
type SectionKind uint8

const (
	SectionInvalid  SectionKind = 0
	SectionField    SectionKind = 1
	SectionVariable SectionKind = 2
	SectionFunction SectionKind = 3
)

// String returns a human-readable name for SectionKind.
func (k SectionKind) String() string {
	switch k {
	case SectionField:
		return "field"
	case SectionVariable:
		return "variable"
	case SectionFunction:
		return "function"
	default:
		return fmt.Sprintf("SectionKind(%d)", k)
	}
}

// Section is one serialized top-level declaration.
type Section struct {
	Kind SectionKind
	ID   int64
	Data []byte
}

// Script is a compiled compilation unit.
type Script struct {
	Version  uint32
	Sections []Section

	// Library is set for library binaries; it carries the export table.
	Library *LibraryInfo
}

// NewScript creates an empty script with the current version.
func NewScript() *Script {
	return &Script{Version: FormatVersion}
}

// AddSection appends a section.
func (s *Script) AddSection(kind SectionKind, id int64, data []byte) {
	s.Sections = append(s.Sections, Section{Kind: kind, ID: id, Data: data})
}

// Section returns the first section with the given id.
func (s *Script) Section(id int64) (Section, bool) {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return Section{}, false
}

// VariablePayload encodes a field/variable section payload: type tag then
// the value bytes (strings carry their trailing NUL).
func VariablePayload(v Value) []byte {
	buf := make([]byte, 0, 1+len(v.Data))
	buf = append(buf, byte(v.Type))
	return append(buf, v.Data...)
}

// DecodeVariablePayload is the inverse of VariablePayload.
func DecodeVariablePayload(data []byte) (Value, error) {
	if len(data) < 1 {
		return Value{}, fmt.Errorf("variable payload is empty")
	}
	t := VarType(data[0])
	if _, ok := typeNames[t]; !ok {
		return Value{}, fmt.Errorf("variable payload has unknown type %d", data[0])
	}
	body := data[1:]
	if size := t.Size(); size >= 0 && len(body) != size {
		return Value{}, fmt.Errorf("variable payload for %s has %d bytes, want %d", t, len(body), size)
	}
	v := Value{Type: t, Data: make([]byte, len(body))}
	copy(v.Data, body)
	return v, nil
}

// Function is the decoded payload of a function section.
type Function struct {
	ParamCount uint8
	ReturnType VarType
	Code       []byte
}

// FunctionPayload encodes a function section payload.
func FunctionPayload(f Function) []byte {
	buf := make([]byte, 0, 2+len(f.Code))
	buf = append(buf, f.ParamCount, byte(f.ReturnType))
	return append(buf, f.Code...)
}

// DecodeFunctionPayload is the inverse of FunctionPayload.
func DecodeFunctionPayload(data []byte) (Function, error) {
	if len(data) < 2 {
		return Function{}, fmt.Errorf("function payload too short: %d bytes", len(data))
	}
	return Function{ParamCount: data[0], ReturnType: VarType(data[1]), Code: data[2:]}, nil
}

// Encode serializes the script.
// Format:
//
//	[magic:4] [version:u32] [section_count:u64]
//	{ [kind:u8] [id:i64] [data_len:u64] [data...] } * section_count
//	[reserved:u64 = 0]                      (scripts)
//	[table_len:u64] [cbor export table...]  (libraries)
func (s *Script) Encode() ([]byte, error) {
	size := 16
	for _, sec := range s.Sections {
		size += 17 + len(sec.Data)
	}
	buf := make([]byte, 0, size+8)

	if s.Library != nil {
		buf = append(buf, LibraryMagic...)
	} else {
		buf = append(buf, ScriptMagic...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, s.Version)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s.Sections)))

	for _, sec := range s.Sections {
		if sec.Kind == SectionInvalid {
			return nil, fmt.Errorf("section %d has no kind", sec.ID)
		}
		buf = append(buf, byte(sec.Kind))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(sec.ID))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(sec.Data)))
		buf = append(buf, sec.Data...)
	}

	if s.Library == nil {
		return binary.LittleEndian.AppendUint64(buf, 0), nil
	}
	table, err := s.Library.Marshal()
	if err != nil {
		return nil, err
	}
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(table)))
	return append(buf, table...), nil
}

// Decode parses a script or library binary.
func Decode(data []byte) (*Script, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("binary too short: need at least 16 bytes, got %d", len(data))
	}

	var library bool
	switch string(data[0:4]) {
	case string(ScriptMagic):
	case string(LibraryMagic):
		library = true
	default:
		return nil, fmt.Errorf("invalid magic: expected %q or %q, got %q", ScriptMagic, LibraryMagic, data[0:4])
	}

	s := &Script{Version: binary.LittleEndian.Uint32(data[4:8])}
	if s.Version > FormatVersion {
		return nil, fmt.Errorf("format version %d is newer than supported version %d", s.Version, FormatVersion)
	}
	count := binary.LittleEndian.Uint64(data[8:16])
	pos := 16

	for i := uint64(0); i < count; i++ {
		if pos+17 > len(data) {
			return nil, fmt.Errorf("unexpected end of binary reading section %d header at pos %d", i, pos)
		}
		kind := SectionKind(data[pos])
		if kind < SectionField || kind > SectionFunction {
			return nil, fmt.Errorf("section %d has invalid kind %d", i, data[pos])
		}
		id := int64(binary.LittleEndian.Uint64(data[pos+1:]))
		n := binary.LittleEndian.Uint64(data[pos+9:])
		pos += 17
		if n > uint64(len(data)-pos) {
			return nil, fmt.Errorf("unexpected end of binary reading section %d: need %d bytes at pos %d", i, n, pos)
		}
		body := make([]byte, n)
		copy(body, data[pos:pos+int(n)])
		pos += int(n)
		s.Sections = append(s.Sections, Section{Kind: kind, ID: id, Data: body})
	}

	if pos+8 > len(data) {
		return nil, fmt.Errorf("unexpected end of binary reading trailer at pos %d", pos)
	}
	trailer := binary.LittleEndian.Uint64(data[pos:])
	pos += 8

	if !library {
		return s, nil
	}
	if trailer > uint64(len(data)-pos) {
		return nil, fmt.Errorf("unexpected end of binary reading export table: need %d bytes", trailer)
	}
	info, err := UnmarshalLibraryInfo(data[pos : pos+int(trailer)])
	if err != nil {
		return nil, err
	}
	s.Library = info
	return s, nil
}
