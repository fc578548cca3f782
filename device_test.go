package ctap2nfc

import "testing"

// fixedRandomProvider overrides Random with a caller-supplied fixed
// value so open()'s nonce exchange is deterministic in tests.
type fixedRandomProvider struct {
	DefaultProvider
	nonce []byte
}

func (p fixedRandomProvider) Random(b []byte) error {
	copy(b, p.nonce)
	return nil
}

func cborStatusOKWithBytes(body []byte) []byte {
	out := append([]byte{0x00}, body...)
	return append(out, 0x90, 0x00)
}

// Scenario 1 (spec.md §8): SELECT returns the bare "U2F_V2" string.
func TestDeviceOpenBareU2FVersionString(t *testing.T) {
	selectReply := append([]byte("U2F_V2"), 0x90, 0x00)
	getInfoReply := cborStatusOKWithBytes([]byte{0xa0}) // empty map

	ft := &fakeTransport{responses: [][]byte{selectReply, getInfoReply}}
	dev := NewDevice(&fakeIO{handle: &fakeIOHandle{t: ft}}, DefaultProvider{})

	if err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if dev.Caps() != CapCBOR {
		t.Fatalf("caps = %v, want CapCBOR only", dev.Caps())
	}
	if dev.maxMsg != MaxMsgSize {
		t.Fatalf("maxMsg = %d, want compile-time default %d", dev.maxMsg, MaxMsgSize)
	}
	if dev.Info() == nil {
		t.Fatalf("expected GetInfo to have been issued")
	}
}

// Scenario 2 (spec.md §8), reached via the bare "FIDO_2_0" SELECT path
// so the GetInfo body under test is the only variable.
func TestDeviceOpenPopulatesInfo(t *testing.T) {
	selectReply := append([]byte("FIDO_2_0"), 0x90, 0x00)

	buf2 := make([]byte, 256)
	w2 := NewWriter(buf2)
	w2.MapStart(7)
	w2.Uint(1)
	w2.ArrayStart(1)
	w2.Utf8string("FIDO_2_1")
	w2.Uint(2)
	w2.ArrayStart(1)
	w2.Utf8string("largeBlobKey")
	w2.Uint(3)
	w2.Bytestring([]byte("0123456789012345"))
	w2.Uint(4)
	w2.MapStart(1)
	w2.Utf8string("largeBlobs")
	w2.Boolean(true)
	w2.Uint(5)
	w2.Uint(2048)
	w2.Uint(9)
	w2.ArrayStart(1)
	w2.Utf8string("nfc")
	w2.Uint(11)
	w2.Uint(1024)
	if w2.Status() != StatusOK {
		t.Fatalf("setup: writer failed")
	}

	getInfoReply := cborStatusOKWithBytes(w2.Bytes())
	ft := &fakeTransport{responses: [][]byte{selectReply, getInfoReply}}
	dev := NewDevice(&fakeIO{handle: &fakeIOHandle{t: ft}}, DefaultProvider{})

	if err := dev.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	info := dev.Info()
	if info == nil {
		t.Fatalf("expected Info to be populated")
	}
	if info.Versions&VersionFIDO21 == 0 {
		t.Fatalf("FIDO_2_1 version bit not set")
	}
	if info.Extensions&ExtLargeBlobKey == 0 {
		t.Fatalf("largeBlobKey extension bit not set")
	}
	if !info.Options["largeBlobs"] {
		t.Fatalf("largeBlobs option not set")
	}
	if dev.Caps()&CapLargeBlob == 0 {
		t.Fatalf("CapLargeBlob not derived from largeBlobs option")
	}
	if info.Transports&TransportNFC == 0 {
		t.Fatalf("nfc transport bit not set")
	}
	if info.MaxMsgSize != 2048 || dev.maxMsg != 2048 {
		t.Fatalf("negotiated max-msg-size = %d/%d, want 2048", info.MaxMsgSize, dev.maxMsg)
	}
	if info.MaxLargeBlob != 1024 {
		t.Fatalf("maxSerializedLargeBlobArray = %d, want 1024", info.MaxLargeBlob)
	}
	if string(info.AAGUID[:]) != "0123456789012345" {
		t.Fatalf("AAGUID = %q, want %q", info.AAGUID[:], "0123456789012345")
	}
}

func TestDeviceOpenNonceMismatchClosesAndFails(t *testing.T) {
	sentNonce := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	echoedWrong := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	attrBlock := append(append([]byte{}, echoedWrong...), 0x02, 0x01, 0x00, 0x00, initFlagCBOR)
	selectReply := append(attrBlock, 0x90, 0x00)

	ft := &fakeTransport{responses: [][]byte{selectReply}}
	dev := NewDevice(&fakeIO{handle: &fakeIOHandle{t: ft}}, fixedRandomProvider{nonce: sentNonce})

	err := dev.Open()
	if err == nil {
		t.Fatalf("expected nonce mismatch to fail Open")
	}
	if dev.handle != nil {
		t.Fatalf("handle should be nil after failed Open")
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close on already-failed device must be a no-op, got %v", err)
	}
}
