package ctap2nfc

import "log/slog"

// Transport is the host-provided transceive primitive: send one short
// APDU, get back its raw response (data plus the two status bytes). It
// plays the role the teacher's Card interface plays for a PC/SC
// connection — one blocking round trip per call, no internal buffering.
type Transport interface {
	Transmit(apdu []byte) ([]byte, error)
}

// transmit sends a already-built short APDU and parses its response.
func transmit(t Transport, a apdu) (response, error) {
	raw, err := t.Transmit(a.marshal())
	if err != nil {
		return response{}, wrapErr(ErrTX, "transport write failed", err)
	}
	return parseResponse(raw)
}

// transmitChained sends payload as one or more chained APDUs (CLA
// continuation bit on all but the last) and reassembles the final
// response via GET_RESPONSE. Every chained write but the last must come
// back 0x9000 before the next chunk is sent; the transport never
// interleaves chunks from different logical commands.
func transmitChained(t Transport, cla, ins, p1, p2 byte, payload []byte) (response, error) {
	chunks := chainAPDUs(cla, ins, p1, p2, payload, 0x00)
	var last response
	for i, c := range chunks {
		r, err := transmit(t, c)
		if err != nil {
			return response{}, err
		}
		if i < len(chunks)-1 {
			if !r.ok() {
				return response{}, wrapErr(ErrTX, "chained APDU rejected mid-sequence", &StatusError{Cmd: ins, Status: r.sw1})
			}
			continue
		}
		last = r
	}
	return receiveReassembled(t, last)
}

// receiveReassembled drives GET_RESPONSE while SW1 is 0x61 (more data
// available), concatenating payload bytes until a terminal status word
// is seen.
func receiveReassembled(t Transport, first response) (response, error) {
	data := append([]byte{}, first.data...)
	cur := first
	for cur.moreData() {
		slog.Debug("ctap2nfc: GET_RESPONSE continuation", "len", cur.sw2)
		r, err := transmit(t, getResponseAPDU(cur.sw2))
		if err != nil {
			return response{}, err
		}
		if len(data)+len(r.data) > MaxMsgSize {
			return response{}, newErr(ErrRX, "reassembled message exceeds MaxMsgSize")
		}
		data = append(data, r.data...)
		cur = r
	}
	return response{data: data, sw1: cur.sw1, sw2: cur.sw2}, nil
}

// sendSelect issues the FIDO2 application SELECT and returns its raw
// reply bytes (on success, either the INIT attribute block or a bare
// version string).
func sendSelect(t Transport) (response, error) {
	return transmitChained(t, claISO, insSelect, p1SelectByAID, 0x00, fidoAID)
}

// sendCBOR wraps cmd and body into a single CTAP "CBOR" command payload,
// transmits it (chaining as needed), and splits the reply into its
// leading CTAP status byte and trailing CBOR payload.
func sendCBOR(t Transport, cmd byte, body []byte) (status byte, payload []byte, err error) {
	frame := make([]byte, 0, 1+len(body))
	frame = append(frame, cmd)
	frame = append(frame, body...)

	r, err := transmitChained(t, claCBOR, insCBOR, 0x00, 0x00, frame)
	if err != nil {
		return 0, nil, err
	}
	if !r.ok() {
		return 0, nil, wrapErr(ErrTX, "CBOR command rejected", &StatusError{Cmd: cmd, Status: r.sw1})
	}
	if len(r.data) < 1 {
		return 0, nil, newErr(ErrRX, "CBOR reply missing status byte")
	}
	return r.data[0], r.data[1:], nil
}
