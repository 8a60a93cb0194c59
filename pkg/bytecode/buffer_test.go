package bytecode

import (
	"bytes"
	"testing"
)

func TestPackWords(t *testing.T) {
	tests := []struct {
		data  []byte
		words int
	}{
		{nil, 1},
		{[]byte{1}, 1},
		{[]byte("12345678"), 1},
		{[]byte("123456789"), 2},
	}

	for _, tt := range tests {
		words := PackWords(tt.data)
		if len(words) != tt.words || WordCount(len(tt.data)) != tt.words {
			t.Errorf("PackWords(%q) = %d words, WordCount = %d, want %d", tt.data, len(words), WordCount(len(tt.data)), tt.words)
		}
		if got := UnpackWords(words, len(tt.data)); !bytes.Equal(got, tt.data) && len(tt.data) > 0 {
			t.Errorf("UnpackWords = %q, want %q", got, tt.data)
		}
	}
}

func TestEmitValueLayout(t *testing.T) {
	b := NewBuffer()
	b.EmitValue(TypeString, StringValue("hi").Data)

	var words []int64
	for off := 0; off < b.Len(); {
		in, err := DecodeInstruction(b.Bytes(), off)
		if err != nil {
			t.Fatal(err)
		}
		if in.Op != OpPush {
			t.Fatalf("unexpected %s", in.Op)
		}
		words = append(words, in.Operands[0])
		off += in.Len
	}
	// data word, size, type
	want := []int64{int64('h') | int64('i')<<8, 3, int64(TypeString)}
	if len(words) != len(want) {
		t.Fatalf("pushed %v, want %v", words, want)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Errorf("word %d = %d, want %d", i, words[i], want[i])
		}
	}
}

func TestJumps(t *testing.T) {
	b := NewBuffer()
	b.Emit(OpNop)
	b.Emit(OpNop)
	at, err := b.EmitJumpBack(OpJmpOff, 0)
	if err != nil {
		t.Fatal(err)
	}
	in, err := DecodeInstruction(b.Bytes(), at)
	if err != nil {
		t.Fatal(err)
	}
	if in.Target() != 0 || in.Operands[0] != -5 {
		t.Errorf("back jump offset %d target %d, want -5 and 0", in.Operands[0], in.Target())
	}

	if _, err := b.EmitJumpOffset(OpJmpOff, 40000); err == nil {
		t.Error("EmitJumpOffset accepted an offset beyond 16 bits")
	}

	abs := b.EmitJumpAbs(OpJmpC, 2)
	if in, _ := DecodeInstruction(b.Bytes(), abs); in.Target() != 2 {
		t.Errorf("absolute target = %d, want 2", in.Target())
	}
}

func TestSplice(t *testing.T) {
	b := NewBuffer()
	sub := b.Scratch()
	sub.Emit(OpAdd)
	sub.Emit(OpRet)
	b.Emit(OpNop)
	b.Splice(sub)
	if sub.Len() != 0 {
		t.Errorf("scratch not reset: %d bytes", sub.Len())
	}
	if !bytes.Equal(b.Bytes(), []byte{byte(OpNop), byte(OpAdd), byte(OpRet)}) {
		t.Errorf("spliced code = % X", b.Bytes())
	}
}
