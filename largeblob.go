package ctap2nfc

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
)

// largeBlobDigestLen is the size of the trailing truncated-SHA-256
// integrity digest appended to every large-blob array.
const largeBlobDigestLen = 16

// canonicalEmptyArray is the 17-byte "empty array" seed: CBOR `[]`
// followed by its own truncated digest. A corrupted array is replaced
// with this exact sequence so subsequent lookups deterministically miss.
var canonicalEmptyArray = []byte{
	0x80, 0x76, 0xbe, 0x8b, 0x52, 0x8d, 0x00, 0x75,
	0xf7, 0xaa, 0xe9, 0x8d, 0x6f, 0xa5, 0x7a, 0x6d, 0x3c,
}

// ReadLargeBlobArray issues paginated authenticatorLargeBlobs reads
// (CTAP command 0x0C) and concatenates the chunks into one buffer. It
// stops as soon as a chunk comes back shorter than requested, per the
// CTAP large-blob read contract.
func ReadLargeBlobArray(t Transport, negotiatedMaxMsg int) ([]byte, error) {
	maxMsg := negotiatedMaxMsg
	if maxMsg <= 0 || maxMsg > MaxMsgSize {
		maxMsg = MaxMsgSize
	}
	chunkLen := maxMsg - 64
	if chunkLen <= 0 {
		return nil, newErr(ErrInternal, "negotiated max message size too small for large-blob reads")
	}

	var out []byte
	offset := uint64(0)
	for {
		body, err := encodeLargeBlobReadRequest(uint64(chunkLen), offset)
		if err != nil {
			return nil, err
		}
		status, payload, err := sendCBOR(t, cmdLargeBlobs, body)
		if err != nil {
			return nil, err
		}
		if !statusOK(status) {
			return nil, &StatusError{Cmd: cmdLargeBlobs, Status: status}
		}

		chunk, err := decodeLargeBlobReadReply(payload)
		if err != nil {
			return nil, err
		}
		if len(out)+len(chunk) > MaxMsgSize*8 {
			return nil, newErr(ErrRX, "large-blob array exceeds sane size bound")
		}
		out = append(out, chunk...)
		offset += uint64(len(chunk))
		if len(chunk) < chunkLen {
			break
		}
	}
	return out, nil
}

func encodeLargeBlobReadRequest(chunkLen, offset uint64) ([]byte, error) {
	buf := make([]byte, 32)
	w := NewWriter(buf)
	w.MapStart(2)
	w.Uint(1)
	w.Uint(chunkLen)
	w.Uint(3)
	w.Uint(offset)
	if w.Status() != StatusOK {
		return nil, newErr(ErrInternal, "large-blob read request did not fit")
	}
	return w.Bytes(), nil
}

func decodeLargeBlobReadReply(payload []byte) ([]byte, error) {
	cur := newCursor(payload)
	var chunk []byte
	err := iterateMap(cur, func(key Elem, valCur *cursor) error {
		if key.Kind == KindUint && key.Int() == 1 {
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindBytes {
				return newErr(ErrUnexpectedType, "large-blob chunk must be bytes")
			}
			chunk = append([]byte{}, e.Data...)
			return nil
		}
		return skipElem(valCur)
	})
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// VerifyLargeBlobArray checks the trailing truncated-SHA-256 digest of
// array. If it does not match, it returns the canonical empty-array seed
// so every subsequent lookup against the result deterministically misses.
func VerifyLargeBlobArray(provider Provider, array []byte) []byte {
	if len(array) < largeBlobDigestLen {
		return append([]byte{}, canonicalEmptyArray...)
	}
	body := array[:len(array)-largeBlobDigestLen]
	want := array[len(array)-largeBlobDigestLen:]
	got := provider.SHA256(body)
	if !bytes.Equal(got[:largeBlobDigestLen], want) {
		return append([]byte{}, canonicalEmptyArray...)
	}
	return array
}

// LookupLargeBlobEntry searches a verified large-blob array for the
// first entry whose AES-GCM AEAD authenticates under key, decompresses
// it, and returns the plaintext. Once one entry authenticates, later
// entries are never attempted — matching the reference client's
// first-match behavior, not merely "ignore if already found."
func LookupLargeBlobEntry(provider Provider, array []byte, key [32]byte) ([]byte, error) {
	if bytes.Equal(array, canonicalEmptyArray) {
		return nil, newErr(ErrNotFound, "large-blob array is empty")
	}
	body := array
	if len(array) >= largeBlobDigestLen {
		body = array[:len(array)-largeBlobDigestLen]
	}

	cur := newCursor(body)
	var result []byte
	found := false
	err := iterateArray(cur, func(_ int, itemCur *cursor) error {
		if found {
			return skipElem(itemCur)
		}
		entry, err := decodeLargeBlobEntry(itemCur)
		if err != nil {
			return err
		}
		pt, ok := tryDecryptEntry(provider, entry, key)
		if !ok {
			return nil
		}
		result = pt
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, newErr(ErrNotFound, "no large-blob entry authenticated")
	}
	return result, nil
}

type largeBlobEntry struct {
	ciphertextAndTag []byte
	nonce            []byte
	origSize         uint64
}

func decodeLargeBlobEntry(cur *cursor) (largeBlobEntry, error) {
	var e largeBlobEntry
	err := iterateMap(cur, func(key Elem, valCur *cursor) error {
		if key.Kind != KindUint {
			return skipElem(valCur)
		}
		switch key.Int() {
		case 1:
			v, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if v.Kind != KindBytes || len(v.Data) < largeBlobDigestLen {
				return newErr(ErrUnexpectedType, "large-blob ciphertext too short for tag")
			}
			e.ciphertextAndTag = v.Data
			return nil
		case 2:
			v, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if v.Kind != KindBytes || len(v.Data) != 12 {
				return newErr(ErrUnexpectedType, "large-blob nonce must be 12 bytes")
			}
			e.nonce = v.Data
			return nil
		case 3:
			v, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if v.Kind != KindUint {
				return newErr(ErrUnexpectedType, "large-blob origSize must be uint")
			}
			e.origSize = v.UVal
			return nil
		default:
			return skipElem(valCur)
		}
	})
	return e, err
}

// tryDecryptEntry attempts AEAD-open then deflate-decompress. Either a
// tag-authentication failure or a decompression failure is reported as
// "no match" so the caller advances to the next entry, matching the
// spec's tolerance for corrupt individual entries.
func tryDecryptEntry(provider Provider, e largeBlobEntry, key [32]byte) ([]byte, bool) {
	if e.ciphertextAndTag == nil || e.nonce == nil {
		return nil, false
	}
	ad := largeBlobAssociatedData(e.origSize)
	pt, err := provider.AESGCMOpen(key[:], e.nonce, e.ciphertextAndTag, ad)
	if err != nil {
		return nil, false
	}
	out, err := inflate(pt)
	if err != nil {
		return nil, false
	}
	return out, true
}

// largeBlobAssociatedData builds the 12-byte AEAD associated data: ASCII
// "blob" followed by little-endian u64(origSize).
func largeBlobAssociatedData(origSize uint64) []byte {
	ad := make([]byte, 12)
	copy(ad, "blob")
	binary.LittleEndian.PutUint64(ad[4:], origSize)
	return ad
}

func inflate(compressed []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapErr(ErrDecompress, "deflate decompression failed", err)
	}
	return out, nil
}
