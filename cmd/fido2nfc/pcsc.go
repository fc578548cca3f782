package main

import (
	"fmt"

	"github.com/ebfe/scard"

	"github.com/All-Your-Locks-Are-Belong-To-Us/ctap2nfc"
)

// pcscHandle wraps a PC/SC card connection as a ctap2nfc.IOHandle, the
// same role the teacher's Connection plays for ntag424's Card interface.
type pcscHandle struct {
	ctx     *scard.Context
	card    *scard.Card
	pending []byte
}

func openPCSC(readerIndex int) (*pcscHandle, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no PC/SC readers found: %w", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index out of range (0..%d)", len(readers)-1)
	}

	card, err := ctx.Connect(readers[readerIndex], scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connect to reader: %w", err)
	}

	return &pcscHandle{ctx: ctx, card: card}, nil
}

// Write only stashes one outbound APDU, since PC/SC's Transmit is itself
// a full transceive: the following Read performs the round trip,
// matching the ioTransport contract of one Write paired with one Read.
func (h *pcscHandle) Write(buf []byte) (int, error) {
	h.pending = append([]byte{}, buf...)
	return len(buf), nil
}

func (h *pcscHandle) Read(buf []byte) (int, error) {
	resp, err := h.card.Transmit(h.pending)
	if err != nil {
		return 0, fmt.Errorf("PC/SC transmit: %w", err)
	}
	return copy(buf, resp), nil
}

func (h *pcscHandle) Close() {
	if h.card != nil {
		_ = h.card.Disconnect(scard.LeaveCard)
	}
	if h.ctx != nil {
		_ = h.ctx.Release()
	}
}

// pcscIO adapts openPCSC/Close into the ctap2nfc.IO vtable.
type pcscIO struct {
	readerIndex int
	opened      *pcscHandle
}

func (io *pcscIO) Open() (ctap2nfc.IOHandle, error) {
	h, err := openPCSC(io.readerIndex)
	if err != nil {
		return nil, err
	}
	io.opened = h
	return h, nil
}

func (io *pcscIO) Close(h ctap2nfc.IOHandle) {
	if pc, ok := h.(*pcscHandle); ok {
		pc.Close()
	}
}
