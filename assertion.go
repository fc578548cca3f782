package ctap2nfc

import "crypto/subtle"

// authDataCap is the fixed buffer size authData is copied into before
// parsing. Anything beyond the parsed rpIdHash/flags/signCount prefix
// (attested-credential or extension bytes) is kept but not interpreted.
const authDataCap = 128

// assertionPreimageCap bounds the signed preimage (authData || clientDataHash)
// this engine will ever hash/verify. Replies whose authData would push
// the preimage past this are rejected before the signature is verified.
const assertionPreimageCap = 160

// AssertionRequest configures one authenticatorGetAssertion call.
type AssertionRequest struct {
	RPID             string
	ClientDataHash   [32]byte
	UP, UV           bool
	WantLargeBlobKey bool
}

// SetClientData hashes data with the provider's SHA-256 into
// ClientDataHash, mirroring set_client_data's hash-then-store contract.
func (r *AssertionRequest) SetClientData(provider Provider, data []byte) {
	r.ClientDataHash = provider.SHA256(data)
}

// AssertionReply is the decoded authenticatorGetAssertion response. Only
// the first credential in the reply is retained.
type AssertionReply struct {
	CredentialType string
	CredentialID   []byte

	AuthDataRaw [authDataCap]byte
	AuthDataLen int
	RPIDHash    [32]byte
	Flags       byte
	SignCount   uint32

	Signature []byte

	LargeBlobKey    [32]byte
	HasLargeBlobKey bool
}

const (
	flagUP = 0x01
	flagUV = 0x04
)

// Execute runs one GetAssertion round trip: it encodes req, adaptively
// growing the request buffer until it fits or the hard 256-byte cap is
// hit, sends it, and decodes the reply.
func Execute(t Transport, req AssertionRequest) (*AssertionReply, error) {
	if req.RPID == "" {
		return nil, newErr(ErrInvalidArgument, "RP ID required")
	}

	body, err := encodeAssertionRequest(req)
	if err != nil {
		return nil, err
	}

	status, payload, err := sendCBOR(t, cmdGetAssertion, body)
	if err != nil {
		return nil, err
	}
	if !statusOK(status) {
		return nil, &StatusError{Cmd: cmdGetAssertion, Status: status}
	}

	return decodeAssertionReply(payload)
}

// encodeAssertionRequest builds the CBOR body, starting from a
// conservative estimate and growing by 32 bytes on buffer-too-short
// until it fits or the 256-byte hard cap is reached.
func encodeAssertionRequest(req AssertionRequest) ([]byte, error) {
	estimate := 8 + len(req.RPID) + 32 + 9 + 32
	const hardCap = 256
	if estimate > hardCap {
		estimate = hardCap
	}

	for {
		buf := make([]byte, estimate)
		w := NewWriter(buf)

		arity := uint64(2)
		if req.WantLargeBlobKey {
			arity++
		}
		if req.UP || req.UV {
			arity++
		}

		w.MapStart(arity)
		w.Uint(1)
		w.Utf8string(req.RPID)
		w.Uint(2)
		w.Bytestring(req.ClientDataHash[:])
		if req.WantLargeBlobKey {
			w.Uint(4)
			w.MapStart(1)
			w.Utf8string("largeBlobKey")
			w.Boolean(true)
		}
		if req.UP || req.UV {
			w.Uint(5)
			optArity := uint64(0)
			if req.UP {
				optArity++
			}
			if req.UV {
				optArity++
			}
			w.MapStart(optArity)
			if req.UP {
				w.Utf8string("up")
				w.Boolean(true)
			}
			if req.UV {
				w.Utf8string("uv")
				w.Boolean(true)
			}
		}

		if w.Status() == StatusOK {
			return w.Bytes(), nil
		}
		if estimate >= hardCap {
			return nil, newErr(ErrInternal, "assertion request exceeds hard size cap")
		}
		estimate += 32
		if estimate > hardCap {
			estimate = hardCap
		}
	}
}

func decodeAssertionReply(payload []byte) (*AssertionReply, error) {
	reply := &AssertionReply{}
	cur := newCursor(payload)
	err := iterateMap(cur, func(key Elem, valCur *cursor) error {
		if key.Kind != KindUint {
			return skipElem(valCur)
		}
		switch key.Int() {
		case 1:
			return decodeCredential(valCur, reply)
		case 2:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindBytes {
				return newErr(ErrUnexpectedType, "authData must be bytes")
			}
			if len(e.Data) < 37 || len(e.Data) > authDataCap {
				return newErr(ErrUnexpectedType, "authData length out of range")
			}
			copy(reply.AuthDataRaw[:], e.Data)
			reply.AuthDataLen = len(e.Data)
			copy(reply.RPIDHash[:], e.Data[:32])
			reply.Flags = e.Data[32]
			reply.SignCount = uint32(e.Data[33])<<24 | uint32(e.Data[34])<<16 | uint32(e.Data[35])<<8 | uint32(e.Data[36])
			return nil
		case 3:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindBytes || len(e.Data) > 64 {
				return newErr(ErrUnexpectedType, "signature must be <=64 bytes")
			}
			reply.Signature = append([]byte{}, e.Data...)
			return nil
		case 4, 5, 6:
			return skipElem(valCur)
		case 7:
			e, err := decodeElem(valCur)
			if err != nil {
				return err
			}
			if e.Kind != KindBytes || len(e.Data) != 32 {
				return newErr(ErrUnexpectedType, "largeBlobKey must be 32 bytes")
			}
			copy(reply.LargeBlobKey[:], e.Data)
			reply.HasLargeBlobKey = true
			return nil
		default:
			return skipElem(valCur)
		}
	})
	if err != nil {
		return nil, err
	}
	if reply.Signature == nil {
		return nil, newErr(ErrInvalidCBOR, "assertion reply missing signature")
	}
	return reply, nil
}

func decodeCredential(cur *cursor, reply *AssertionReply) error {
	e, err := decodeElem(cur)
	if err != nil {
		return err
	}
	if e.Kind != KindMap {
		return newErr(ErrUnexpectedType, "credential must be a map")
	}
	for i := uint64(0); i < e.UVal; i++ {
		k, err := decodeElem(cur)
		if err != nil {
			return err
		}
		if k.Kind != KindText {
			if err := skipElem(cur); err != nil {
				return err
			}
			continue
		}
		switch string(k.Data) {
		case "type":
			v, err := decodeElem(cur)
			if err != nil {
				return err
			}
			if v.Kind != KindText {
				return newErr(ErrUnexpectedType, "credential type must be text")
			}
			reply.CredentialType = string(v.Data)
		case "id":
			v, err := decodeElem(cur)
			if err != nil {
				return err
			}
			if v.Kind != KindBytes || len(v.Data) > 255 {
				return newErr(ErrUnexpectedType, "credential id must be <=255 bytes")
			}
			reply.CredentialID = append([]byte{}, v.Data...)
		default:
			if err := skipElem(cur); err != nil {
				return err
			}
		}
	}
	return nil
}

// Verify checks the GetAssertion reply against the requested options and
// the RP ID, then verifies the signature with the given COSE algorithm
// and public key. Only EdDSA is supported; every other algorithm fails
// with ErrUnsupportedOption.
func Verify(reply *AssertionReply, req AssertionRequest, provider Provider, coseAlg int, publicKey []byte) error {
	if req.RPID == "" {
		return newErr(ErrInvalidArgument, "RP ID required")
	}
	if req.UP && reply.Flags&flagUP == 0 {
		return newErr(ErrUserPresenceRequired, "user presence not set")
	}
	if req.UV && reply.Flags&flagUV == 0 {
		return newErr(ErrInvalidParam, "user verification not set")
	}

	rpHash := provider.SHA256([]byte(req.RPID))
	if subtle.ConstantTimeCompare(rpHash[:], reply.RPIDHash[:]) != 1 {
		return newErr(ErrInvalidParam, "rpIdHash mismatch")
	}

	if reply.AuthDataLen+len(req.ClientDataHash) > assertionPreimageCap {
		return newErr(ErrInternal, "signed preimage exceeds fixed budget")
	}
	preimage := make([]byte, 0, assertionPreimageCap)
	preimage = append(preimage, reply.AuthDataRaw[:reply.AuthDataLen]...)
	preimage = append(preimage, req.ClientDataHash[:]...)

	if coseAlg != coseEdDSA {
		return newErr(ErrUnsupportedOption, "unsupported signature algorithm")
	}
	if !provider.Ed25519Verify(publicKey, preimage, reply.Signature) {
		return newErr(ErrInvalidSig, "signature verification failed")
	}
	return nil
}
