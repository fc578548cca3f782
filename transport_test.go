package ctap2nfc

import "testing"

func TestReceiveReassemblySingleResponse(t *testing.T) {
	ft := &fakeTransport{}
	first := response{data: []byte{0x01, 0x02, 0x03}, sw1: 0x90, sw2: 0x00}
	got, err := receiveReassembled(ft, first)
	if err != nil {
		t.Fatalf("receiveReassembled: %v", err)
	}
	if len(got.data) != 3 || !got.ok() {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(ft.sent) != 0 {
		t.Fatalf("no GET_RESPONSE should have been sent, got %d", len(ft.sent))
	}
}

func TestReceiveReassemblyContinuations(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		ft := &fakeTransport{}
		for i := 0; i < n; i++ {
			ft.responses = append(ft.responses, []byte{byte(i), 0x61, 0x08})
		}
		ft.responses = append(ft.responses, []byte{0xFF, 0x90, 0x00})

		first := response{data: []byte{0xEE}, sw1: 0x61, sw2: 0x08}
		got, err := receiveReassembled(ft, first)
		if err != nil {
			t.Fatalf("continuations=%d: %v", n, err)
		}
		wantLen := 1 + n + 1 // initial byte + one byte per continuation + final byte
		if len(got.data) != wantLen {
			t.Fatalf("continuations=%d: got len %d, want %d (% X)", n, len(got.data), wantLen, got.data)
		}
		if !got.ok() {
			t.Fatalf("continuations=%d: final status not ok: %+v", n, got)
		}
		if len(ft.sent) != n+1 {
			t.Fatalf("continuations=%d: expected %d GET_RESPONSE sends, got %d", n, n+1, len(ft.sent))
		}
	}
}

func TestReceiveReassemblySW2ZeroVersusFF(t *testing.T) {
	for _, sw2 := range []byte{0x00, 0xFF} {
		ft := &fakeTransport{responses: [][]byte{{0xAA, 0x90, 0x00}}}
		first := response{data: []byte{0x11}, sw1: 0x61, sw2: sw2}
		_, err := receiveReassembled(ft, first)
		if err != nil {
			t.Fatalf("sw2=0x%02X: %v", sw2, err)
		}
		sentAPDU := ft.sent[0]
		if sentAPDU[1] != insGetResp {
			t.Fatalf("sw2=0x%02X: expected GET_RESPONSE INS", sw2)
		}
		if sentAPDU[len(sentAPDU)-1] != sw2 {
			t.Fatalf("sw2=0x%02X: GET_RESPONSE Le = 0x%02X, want SW2 propagated", sw2, sentAPDU[len(sentAPDU)-1])
		}
	}
}

func TestSendCBORSplitsStatusAndPayload(t *testing.T) {
	ft := &fakeTransport{responses: [][]byte{
		append([]byte{0x00, 0xAA, 0xBB}, 0x90, 0x00),
	}}
	status, payload, err := sendCBOR(ft, cmdGetInfo, nil)
	if err != nil {
		t.Fatalf("sendCBOR: %v", err)
	}
	if status != 0x00 {
		t.Fatalf("status = 0x%02X, want 0x00", status)
	}
	if len(payload) != 2 || payload[0] != 0xAA || payload[1] != 0xBB {
		t.Fatalf("unexpected payload: % X", payload)
	}
}
