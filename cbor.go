package ctap2nfc

import "encoding/binary"

// Kind identifies the major type of a decoded CBOR element.
type Kind int

const (
	KindUint Kind = iota
	KindNegInt
	KindBytes
	KindText
	KindArray
	KindMap
	KindTag
	KindTrue
	KindFalse
	KindNull
	KindFloat
)

// Elem is a non-owning view onto one decoded CBOR element. Data, when
// present, points into the buffer the decoder was given; it must not be
// retained past the next receive.
type Elem struct {
	Kind Kind
	UVal uint64 // uint/negint magnitude, tag number, or array/map item count
	Data []byte // raw payload for Bytes/Text
}

// Int returns the signed integer value of a uint or negint element.
func (e Elem) Int() int64 {
	if e.Kind == KindNegInt {
		return -1 - int64(e.UVal)
	}
	return int64(e.UVal)
}

const (
	majorUint    = 0
	majorNegInt  = 1
	majorBytes   = 2
	majorText    = 3
	majorArray   = 4
	majorMap     = 5
	majorTag     = 6
	majorSimple  = 7
	simpleFalse  = 20
	simpleTrue   = 21
	simpleNull   = 22
	simpleFloat2 = 25
	simpleFloat4 = 26
	simpleFloat8 = 27
)

// decodeElem reads one element from cur. Containers (array/map) are
// returned with their item count and an empty Data; the caller is
// responsible for consuming exactly that many items (or key/value pairs)
// from the same cursor afterward.
func decodeElem(cur *cursor) (Elem, error) {
	first, err := cur.readByte()
	if err != nil {
		return Elem{}, wrapErr(ErrInvalidCBOR, "truncated element", err)
	}
	major := first >> 5
	info := first & 0x1f

	value, indefinite, err := readArgument(cur, info)
	if err != nil {
		return Elem{}, err
	}

	switch major {
	case majorUint:
		return Elem{Kind: KindUint, UVal: value}, nil
	case majorNegInt:
		return Elem{Kind: KindNegInt, UVal: value}, nil
	case majorBytes, majorText:
		if indefinite {
			return Elem{}, newErr(ErrInvalidCBOR, "indefinite-length string rejected")
		}
		if value > uint64(cur.remaining()) {
			return Elem{}, newErr(ErrInvalidCBOR, "string length exceeds buffer")
		}
		data, err := cur.readN(int(value))
		if err != nil {
			return Elem{}, wrapErr(ErrInvalidCBOR, "short string body", err)
		}
		k := KindBytes
		if major == majorText {
			k = KindText
		}
		return Elem{Kind: k, UVal: value, Data: data}, nil
	case majorArray:
		if indefinite {
			return Elem{}, newErr(ErrInvalidCBOR, "indefinite-length array rejected")
		}
		return Elem{Kind: KindArray, UVal: value}, nil
	case majorMap:
		if indefinite {
			return Elem{}, newErr(ErrInvalidCBOR, "indefinite-length map rejected")
		}
		return Elem{Kind: KindMap, UVal: value}, nil
	case majorTag:
		return Elem{Kind: KindTag, UVal: value}, nil
	case majorSimple:
		switch info {
		case simpleFalse:
			return Elem{Kind: KindFalse}, nil
		case simpleTrue:
			return Elem{Kind: KindTrue}, nil
		case simpleNull:
			return Elem{Kind: KindNull}, nil
		case simpleFloat2, simpleFloat4, simpleFloat8:
			return Elem{Kind: KindFloat, UVal: value}, nil
		default:
			return Elem{}, newErr(ErrUnexpectedType, "unsupported simple value")
		}
	default:
		return Elem{}, newErr(ErrUnexpectedType, "unknown major type")
	}
}

// readArgument decodes the length/value argument that follows the
// initial byte, per the low 5 bits (info) of that byte.
func readArgument(cur *cursor, info byte) (value uint64, indefinite bool, err error) {
	switch {
	case info < 24:
		return uint64(info), false, nil
	case info == 24:
		b, err := cur.readN(1)
		if err != nil {
			return 0, false, wrapErr(ErrInvalidCBOR, "truncated 1-byte argument", err)
		}
		return uint64(b[0]), false, nil
	case info == 25:
		b, err := cur.readN(2)
		if err != nil {
			return 0, false, wrapErr(ErrInvalidCBOR, "truncated 2-byte argument", err)
		}
		return uint64(binary.BigEndian.Uint16(b)), false, nil
	case info == 26:
		b, err := cur.readN(4)
		if err != nil {
			return 0, false, wrapErr(ErrInvalidCBOR, "truncated 4-byte argument", err)
		}
		return uint64(binary.BigEndian.Uint32(b)), false, nil
	case info == 27:
		b, err := cur.readN(8)
		if err != nil {
			return 0, false, wrapErr(ErrInvalidCBOR, "truncated 8-byte argument", err)
		}
		return binary.BigEndian.Uint64(b), false, nil
	case info == 31:
		return 0, true, nil
	default:
		return 0, false, newErr(ErrInvalidCBOR, "reserved additional-info value")
	}
}

// skipElem discards one element, descending into containers so the
// cursor ends up positioned after the whole value. Used when a decoder
// callback ignores a key it doesn't recognize.
func skipElem(cur *cursor) error {
	e, err := decodeElem(cur)
	if err != nil {
		return err
	}
	switch e.Kind {
	case KindArray:
		for i := uint64(0); i < e.UVal; i++ {
			if err := skipElem(cur); err != nil {
				return err
			}
		}
	case KindMap:
		for i := uint64(0); i < e.UVal; i++ {
			if err := skipElem(cur); err != nil { // key
				return err
			}
			if err := skipElem(cur); err != nil { // value
				return err
			}
		}
	case KindTag:
		return skipElem(cur) // tagged value follows
	}
	return nil
}

// iterateMap decodes a map header at the cursor's current position and
// invokes fn once per (key, value) pair in wire order. fn receives the
// decoded key element and a cursor positioned at the start of the value;
// fn must consume exactly one element from that cursor (directly or via
// skipElem) before returning.
func iterateMap(cur *cursor, fn func(key Elem, valCur *cursor) error) error {
	e, err := decodeElem(cur)
	if err != nil {
		return err
	}
	if e.Kind != KindMap {
		return newErr(ErrUnexpectedType, "expected map")
	}
	for i := uint64(0); i < e.UVal; i++ {
		key, err := decodeElem(cur)
		if err != nil {
			return err
		}
		before := cur.pos
		if err := fn(key, cur); err != nil {
			return err
		}
		if cur.pos == before {
			return newErr(ErrInternal, "map value callback consumed nothing")
		}
	}
	return nil
}

// iterateArray decodes an array header and invokes fn once per item,
// passing a cursor positioned at the start of the item.
func iterateArray(cur *cursor, fn func(i int, itemCur *cursor) error) error {
	e, err := decodeElem(cur)
	if err != nil {
		return err
	}
	if e.Kind != KindArray {
		return newErr(ErrUnexpectedType, "expected array")
	}
	for i := uint64(0); i < e.UVal; i++ {
		before := cur.pos
		if err := fn(int(i), cur); err != nil {
			return err
		}
		if cur.pos == before {
			return newErr(ErrInternal, "array item callback consumed nothing")
		}
	}
	return nil
}

// Status reports the outcome of a sequence of Writer operations.
type Status int

const (
	StatusOK Status = iota
	StatusBufferTooShort
)

// Writer encodes CTAP2 canonical CBOR into a caller-provided buffer. Once
// an operation latches StatusBufferTooShort, every subsequent operation
// is a no-op that preserves both the error and the previously written
// bytes.
type Writer struct {
	buf    []byte
	pos    int
	status Status
}

// NewWriter wraps buf for canonical CBOR encoding. The full capacity of
// buf is available; the writer never reallocates.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) Status() Status { return w.status }
func (w *Writer) Len() int       { return w.pos }
func (w *Writer) Bytes() []byte  { return w.buf[:w.pos] }

// fit reserves n bytes at the end of the written region, returning the
// destination slice, or latches buffer-too-short and returns nil.
func (w *Writer) fit(n int) []byte {
	if w.status != StatusOK {
		return nil
	}
	if w.pos+n > len(w.buf) {
		w.status = StatusBufferTooShort
		return nil
	}
	dst := w.buf[w.pos : w.pos+n]
	w.pos += n
	return dst
}

func headerLen(value uint64) int {
	switch {
	case value < 24:
		return 1
	case value <= 0xff:
		return 2
	case value <= 0xffff:
		return 3
	case value <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func (w *Writer) writeHeader(major byte, value uint64) {
	n := headerLen(value)
	dst := w.fit(n)
	if dst == nil {
		return
	}
	switch n {
	case 1:
		dst[0] = major<<5 | byte(value)
	case 2:
		dst[0] = major<<5 | 24
		dst[1] = byte(value)
	case 3:
		dst[0] = major<<5 | 25
		binary.BigEndian.PutUint16(dst[1:], uint16(value))
	case 5:
		dst[0] = major<<5 | 26
		binary.BigEndian.PutUint32(dst[1:], uint32(value))
	case 9:
		dst[0] = major<<5 | 27
		binary.BigEndian.PutUint64(dst[1:], value)
	}
}

// Uint encodes a non-negative integer.
func (w *Writer) Uint(v uint64) {
	w.writeHeader(majorUint, v)
}

// NegInt encodes the CBOR major-1 integer representing -(1+v).
func (w *Writer) NegInt(v uint64) {
	w.writeHeader(majorNegInt, v)
}

// Bytestring encodes a definite-length byte string.
func (w *Writer) Bytestring(b []byte) {
	if w.status != StatusOK {
		return
	}
	need := headerLen(uint64(len(b))) + len(b)
	if w.pos+need > len(w.buf) {
		w.status = StatusBufferTooShort
		return
	}
	w.writeHeader(majorBytes, uint64(len(b)))
	dst := w.fit(len(b))
	copy(dst, b)
}

// Utf8string encodes a definite-length UTF-8 text string.
func (w *Writer) Utf8string(s string) {
	if w.status != StatusOK {
		return
	}
	need := headerLen(uint64(len(s))) + len(s)
	if w.pos+need > len(w.buf) {
		w.status = StatusBufferTooShort
		return
	}
	w.writeHeader(majorText, uint64(len(s)))
	dst := w.fit(len(s))
	copy(dst, s)
}

// ArrayStart writes an array header for n upcoming items. The items
// themselves are written by subsequent calls.
func (w *Writer) ArrayStart(n uint64) {
	w.writeHeader(majorArray, n)
}

// MapStart writes a map header for n upcoming key/value pairs.
func (w *Writer) MapStart(n uint64) {
	w.writeHeader(majorMap, n)
}

// Boolean encodes a CBOR true/false simple value.
func (w *Writer) Boolean(v bool) {
	if w.status != StatusOK {
		return
	}
	dst := w.fit(1)
	if dst == nil {
		return
	}
	if v {
		dst[0] = majorSimple<<5 | simpleTrue
	} else {
		dst[0] = majorSimple<<5 | simpleFalse
	}
}
