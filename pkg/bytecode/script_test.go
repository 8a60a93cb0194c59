package bytecode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleScript() *Script {
	s := NewScript()
	s.AddSection(SectionField, NameID("health"), VariablePayload(IntValue(100)))
	s.AddSection(SectionVariable, NameID("title"), VariablePayload(StringValue("hero")))

	b := NewBuffer()
	b.EmitValue(TypeInt, IntValue(7).Data)
	b.Emit(OpRet)
	s.AddSection(SectionFunction, NameID("main"), FunctionPayload(Function{ReturnType: TypeInt, Code: b.Bytes()}))
	return s
}

func TestScriptRoundTrip(t *testing.T) {
	s := sampleScript()
	data, err := s.Encode()
	require.NoError(t, err)
	require.Equal(t, ScriptMagic, data[:4])

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, s.Version, got.Version)
	require.Equal(t, s.Sections, got.Sections)
	require.Nil(t, got.Library)

	sec, ok := got.Section(NameID("title"))
	require.True(t, ok)
	v, err := DecodeVariablePayload(sec.Data)
	require.NoError(t, err)
	require.Equal(t, "hero", v.String())

	_, ok = got.Section(NameID("missing"))
	require.False(t, ok)
}

func TestLibraryRoundTrip(t *testing.T) {
	s := sampleScript()
	s.Library = &LibraryInfo{
		Exports: []Export{
			{Name: "health", ID: NameID("health"), Kind: SectionField},
			{Name: "main", ID: NameID("main"), Kind: SectionFunction},
		},
		Dependencies: []string{"/src/util.bar"},
	}

	data, err := s.Encode()
	require.NoError(t, err)
	require.Equal(t, LibraryMagic, data[:4])

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, s.Library, got.Library)

	e, ok := got.Library.Lookup("main")
	require.True(t, ok)
	require.Equal(t, SectionFunction, e.Kind)
	_, ok = got.Library.Lookup("nope")
	require.False(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	good, err := sampleScript().Encode()
	require.NoError(t, err)

	newer := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(newer[4:], FormatVersion+1)

	badKind := append([]byte(nil), good...)
	badKind[16] = 9

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"short", good[:10], "too short"},
		{"magic", append([]byte("NOPE"), good[4:]...), "invalid magic"},
		{"version", newer, "newer than supported"},
		{"kind", badKind, "invalid kind"},
		{"truncated section", good[:30], "unexpected end"},
		{"missing trailer", good[:len(good)-8], "trailer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEncodeRejectsInvalidSection(t *testing.T) {
	s := NewScript()
	s.AddSection(SectionInvalid, 1, nil)
	_, err := s.Encode()
	require.Error(t, err)
}

func TestPayloads(t *testing.T) {
	fn := Function{ParamCount: 2, ReturnType: TypeFloat, Code: []byte{byte(OpRet)}}
	got, err := DecodeFunctionPayload(FunctionPayload(fn))
	require.NoError(t, err)
	require.Equal(t, fn, got)

	_, err = DecodeFunctionPayload([]byte{1})
	require.Error(t, err)

	_, err = DecodeVariablePayload(nil)
	require.Error(t, err)
	_, err = DecodeVariablePayload([]byte{byte(TypeInt), 1, 2})
	require.ErrorContains(t, err, "has 2 bytes, want 4")
	_, err = DecodeVariablePayload([]byte{0x42})
	require.ErrorContains(t, err, "unknown type")
}
