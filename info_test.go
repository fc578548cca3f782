package ctap2nfc

import "testing"

func TestGetInfoIgnoresUnknownKeys(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	w.MapStart(2)
	w.Uint(99) // unrecognized key
	w.Utf8string("ignored")
	w.Uint(5)
	w.Uint(1200)
	if w.Status() != StatusOK {
		t.Fatalf("setup: writer failed")
	}

	ft := &fakeTransport{responses: [][]byte{cborStatusOKWithBytes(w.Bytes())}}
	info, err := getInfo(ft, DefaultProvider{})
	if err != nil {
		t.Fatalf("getInfo: %v", err)
	}
	if info.MaxMsgSize != 1200 {
		t.Fatalf("maxMsgSize = %d, want 1200", info.MaxMsgSize)
	}
}

func TestGetInfoDecodesAlgorithms(t *testing.T) {
	buf := make([]byte, 64)
	w := NewWriter(buf)
	w.MapStart(1)
	w.Uint(10)
	w.ArrayStart(2)
	w.MapStart(1)
	w.Utf8string("alg")
	w.NegInt(7) // -8 == EdDSA
	w.MapStart(1)
	w.Utf8string("alg")
	w.NegInt(6) // -7 == ES256
	if w.Status() != StatusOK {
		t.Fatalf("setup: writer failed")
	}

	ft := &fakeTransport{responses: [][]byte{cborStatusOKWithBytes(w.Bytes())}}
	info, err := getInfo(ft, DefaultProvider{})
	if err != nil {
		t.Fatalf("getInfo: %v", err)
	}
	if info.Algorithms&AlgEdDSA == 0 {
		t.Fatalf("EdDSA bit not set")
	}
	if info.Algorithms&AlgES256 == 0 {
		t.Fatalf("ES256 bit not set")
	}
}

func TestGetInfoPropagatesStatusError(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{{0x01, 0x90, 0x00}}} // CTAP status 0x01
	if _, err := getInfo(ft, DefaultProvider{}); err == nil {
		t.Fatalf("expected StatusError for non-zero CTAP status")
	}
}
