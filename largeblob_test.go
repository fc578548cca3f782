package ctap2nfc

import (
	"bytes"
	"compress/flate"
	"testing"
)

func deflateBytes(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter: %v", err)
	}
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("flate write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("flate close: %v", err)
	}
	return buf.Bytes()
}

// buildLargeBlobArray assembles one CBOR array-of-maps large-blob array
// (without the trailing digest) containing a single entry that
// authenticates under key and decompresses to plaintext.
func buildLargeBlobArray(t *testing.T, provider Provider, key [32]byte, plaintext []byte) []byte {
	t.Helper()
	compressed := deflateBytes(t, plaintext)
	nonce := bytes.Repeat([]byte{0x07}, 12)
	ad := largeBlobAssociatedData(uint64(len(plaintext)))
	ct, err := provider.AESGCMSeal(key[:], nonce, compressed, ad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	buf := make([]byte, 4096)
	w := NewWriter(buf)
	w.ArrayStart(1)
	w.MapStart(3)
	w.Uint(1)
	w.Bytestring(ct)
	w.Uint(2)
	w.Bytestring(nonce)
	w.Uint(3)
	w.Uint(uint64(len(plaintext)))
	if w.Status() != StatusOK {
		t.Fatalf("setup: writer failed")
	}
	return w.Bytes()
}

func appendDigest(provider Provider, body []byte) []byte {
	sum := provider.SHA256(body)
	return append(append([]byte{}, body...), sum[:largeBlobDigestLen]...)
}

// Scenario 5 (spec.md §8): correct key decrypts to
// credential_public_key(32) || signature(64); wrong key returns not-found.
func TestLargeBlobLookupSuccessAndWrongKey(t *testing.T) {
	provider := DefaultProvider{}
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := append(bytes.Repeat([]byte{0xAB}, 32), bytes.Repeat([]byte{0xCD}, 64)...)

	body := buildLargeBlobArray(t, provider, key, plaintext)
	array := appendDigest(provider, body)

	verified := VerifyLargeBlobArray(provider, array)
	if !bytes.Equal(verified, array) {
		t.Fatalf("valid array was replaced with empty seed")
	}

	got, err := LookupLargeBlobEntry(provider, verified, key)
	if err != nil {
		t.Fatalf("lookup with correct key: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("decrypted plaintext mismatch")
	}

	var wrongKey [32]byte
	for i := range wrongKey {
		wrongKey[i] = byte(255 - i)
	}
	if _, err := LookupLargeBlobEntry(provider, verified, wrongKey); err == nil {
		t.Fatalf("expected not-found for wrong key")
	}
}

// Scenario 6 (spec.md §8): flipping one digest byte replaces the array
// with the canonical empty seed, and lookups thereafter miss.
func TestLargeBlobArrayCorruptionFallsBackToEmptySeed(t *testing.T) {
	provider := DefaultProvider{}
	var key [32]byte
	plaintext := []byte("irrelevant")
	body := buildLargeBlobArray(t, provider, key, plaintext)
	array := appendDigest(provider, body)

	array[len(array)-1] ^= 0xFF // corrupt one digest byte

	verified := VerifyLargeBlobArray(provider, array)
	if !bytes.Equal(verified, canonicalEmptyArray) {
		t.Fatalf("corrupted array was not replaced with the canonical empty seed")
	}

	if _, err := LookupLargeBlobEntry(provider, verified, key); err == nil {
		t.Fatalf("expected not-found against the empty seed")
	}
}

func TestReadLargeBlobArrayPagination(t *testing.T) {
	total := 155
	chunkLen := 64 // negotiatedMaxMsg(128) - 64
	remaining := total

	var responses [][]byte
	for remaining > 0 {
		n := chunkLen
		if n > remaining {
			n = remaining
		}
		chunk := bytes.Repeat([]byte{0x5A}, n)
		buf := make([]byte, n+16)
		w := NewWriter(buf)
		w.MapStart(1)
		w.Uint(1)
		w.Bytestring(chunk)
		if w.Status() != StatusOK {
			t.Fatalf("setup: writer failed")
		}
		responses = append(responses, cborStatusOKWithBytes(w.Bytes()))
		remaining -= n
	}
	// A chunk shorter than requested ends the read; 155 = 64+64+27 already
	// terminates naturally on the last (27-byte) chunk.

	ft := &fakeTransport{responses: responses}
	got, err := ReadLargeBlobArray(ft, 128)
	if err != nil {
		t.Fatalf("ReadLargeBlobArray: %v", err)
	}
	if len(got) != total {
		t.Fatalf("assembled length = %d, want %d", len(got), total)
	}
	if len(ft.sent) != len(responses) {
		t.Fatalf("expected %d round trips, got %d", len(responses), len(ft.sent))
	}
}
