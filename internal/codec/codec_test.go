package codec

import (
	"bytes"
	"testing"
)

func TestByTagResolvesRegisteredCodecs(t *testing.T) {
	if c, err := ByTag(0x00); err != nil || c.Tag() != 0x00 {
		t.Fatalf("ByTag(0x00): %v, %+v", err, c)
	}
	if c, err := ByTag(0x01); err != nil || c.Tag() != 0x01 {
		t.Fatalf("ByTag(0x01): %v, %+v", err, c)
	}
}

func TestByTagUnknownTag(t *testing.T) {
	if _, err := ByTag(0xFF); err == nil {
		t.Fatalf("expected error for unregistered tag")
	}
}

func TestNoneCodecRoundTrip(t *testing.T) {
	src := []byte("the quick brown fox jumps over the lazy dog")
	enc, err := NoneCodec{}.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := NoneCodec{}.Decode(enc, len(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, src) {
		t.Fatalf("round trip mismatch: got %q want %q", dec, src)
	}
}

func TestNoneCodecDecodeLengthMismatch(t *testing.T) {
	if _, err := (NoneCodec{}).Decode([]byte{1, 2, 3}, 4); err == nil {
		t.Fatalf("expected length-mismatch error")
	}
}

func TestSnappyCodecRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte{0, 1, 2, 3}, 256)
	enc, err := SnappyCodec{}.Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(enc) >= len(src) {
		t.Fatalf("expected compression to shrink a repetitive payload: %d >= %d", len(enc), len(src))
	}
	dec, err := SnappyCodec{}.Decode(enc, len(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, src) {
		t.Fatalf("round trip mismatch")
	}
}

func TestSnappyCodecDecodeLengthMismatch(t *testing.T) {
	enc, _ := SnappyCodec{}.Encode([]byte("hello world"))
	if _, err := (SnappyCodec{}).Decode(enc, 3); err == nil {
		t.Fatalf("expected decoded-length-mismatch error")
	}
}

func TestMaxEncodedLenFallsBackToRawLenForVerbatimCodec(t *testing.T) {
	if got := MaxEncodedLen(0x00, 100); got != 100 {
		t.Fatalf("MaxEncodedLen(NoneCodec, 100) = %d, want 100", got)
	}
}

func TestMaxEncodedLenUsesCodecBoundForSnappy(t *testing.T) {
	got := MaxEncodedLen(0x01, 100)
	want := SnappyCodec{}.MaxEncodedLen(100)
	if got != want {
		t.Fatalf("MaxEncodedLen(SnappyCodec, 100) = %d, want %d", got, want)
	}
}
