package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// protocolVersion is passed to the btcd var-int helpers; the value does not
// change their encoding.
const protocolVersion = 0

// MaxFieldSize bounds any length-prefixed field read from untrusted input.
const MaxFieldSize = 1 << 20

// ErrMalformed is returned when canonical bytes cannot be decoded.
var ErrMalformed = errors.New("malformed encoding")

// Encoder writes the canonical binary form. The first write error is kept and
// every later call becomes a no-op.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first error encountered.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *Encoder) U8(v uint8) {
	e.write([]byte{v})
}

func (e *Encoder) U16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	e.write(buf[:])
}

func (e *Encoder) U32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	e.write(buf[:])
}

func (e *Encoder) U64(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	e.write(buf[:])
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
		return
	}
	e.U8(0)
}

// VarInt writes a Bitcoin compact size.
func (e *Encoder) VarInt(v uint64) {
	if e.err != nil {
		return
	}
	e.err = wire.WriteVarInt(e.w, protocolVersion, v)
}

// Bytes writes a compact-size length prefix followed by b.
func (e *Encoder) Bytes(b []byte) {
	if e.err != nil {
		return
	}
	e.err = wire.WriteVarBytes(e.w, protocolVersion, b)
}

func (e *Encoder) String(s string) {
	e.Bytes([]byte(s))
}

// Fixed writes b without a length prefix.
func (e *Encoder) Fixed(b []byte) {
	e.write(b)
}

func (e *Encoder) Hash(h chainhash.Hash) {
	e.write(h[:])
}

// Tx writes a length-prefixed serialized transaction, witness included.
func (e *Encoder) Tx(tx *wire.MsgTx) {
	if e.err != nil {
		return
	}
	if tx == nil {
		e.Bytes(nil)
		return
	}
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		e.err = err
		return
	}
	e.Bytes(buf.Bytes())
}

// Decoder reads the canonical binary form with the same sticky-error rule as Encoder.
type Decoder struct {
	r   io.Reader
	err error
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Err returns the first error encountered. Short reads are reported as ErrMalformed.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) fail(err error) {
	if d.err != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = fmt.Errorf("%w: unexpected end of data", ErrMalformed)
	}
	d.err = err
}

func (d *Decoder) read(n int) []byte {
	if d.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail(err)
	}
	return buf
}

func (d *Decoder) U8() uint8 {
	return d.read(1)[0]
}

func (d *Decoder) U16() uint16 {
	return binary.BigEndian.Uint16(d.read(2))
}

func (d *Decoder) U32() uint32 {
	return binary.BigEndian.Uint32(d.read(4))
}

func (d *Decoder) U64() uint64 {
	return binary.BigEndian.Uint64(d.read(8))
}

func (d *Decoder) Bool() bool {
	switch v := d.U8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail(fmt.Errorf("%w: bool byte %d", ErrMalformed, v))
		return false
	}
}

func (d *Decoder) VarInt() uint64 {
	if d.err != nil {
		return 0
	}
	v, err := wire.ReadVarInt(d.r, protocolVersion)
	if err != nil {
		d.fail(err)
		return 0
	}
	return v
}

// Count reads a compact size used as an element count and bounds it.
func (d *Decoder) Count(field string) int {
	n := d.VarInt()
	if n > MaxFieldSize {
		d.fail(fmt.Errorf("%w: %s count %d too large", ErrMalformed, field, n))
		return 0
	}
	return int(n)
}

func (d *Decoder) Bytes(field string) []byte {
	if d.err != nil {
		return nil
	}
	b, err := wire.ReadVarBytes(d.r, protocolVersion, MaxFieldSize, field)
	if err != nil {
		d.fail(err)
		return nil
	}
	return b
}

func (d *Decoder) String(field string) string {
	return string(d.Bytes(field))
}

func (d *Decoder) Fixed(n int) []byte {
	return d.read(n)
}

func (d *Decoder) Hash() chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], d.read(chainhash.HashSize))
	return h
}

// Tx reads a transaction written by Encoder.Tx. An empty payload yields nil.
func (d *Decoder) Tx() *wire.MsgTx {
	raw := d.Bytes("tx")
	if d.err != nil || len(raw) == 0 {
		return nil
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		d.fail(fmt.Errorf("%w: transaction: %v", ErrMalformed, err))
		return nil
	}
	return tx
}
