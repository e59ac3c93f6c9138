package consignment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/sealtransfer/internal/model"
	"golang.org/x/crypto/sha3"
)

var fileMagic = []byte("STCN")

const (
	fileVersion  uint16 = 1
	checksumSize        = 32
	terminalSize        = chainhash.HashSize + 4
)

// RecordTag identifies a record in the consignment stream.
type RecordTag uint8

const (
	TagGenesis   RecordTag = 0x01
	TagAnchor    RecordTag = 0x02
	TagOperation RecordTag = 0x03
	TagTerminal  RecordTag = 0x04
	tagEnd       RecordTag = 0xff
)

// Header is the fixed prefix of a consignment file.
type Header struct {
	Version    uint16
	Kind       Kind
	ContractID model.ContractID
}

// Record is one decoded entry of the stream. Exactly one field matching Tag is set.
type Record struct {
	Tag       RecordTag
	Operation model.Operation
	Anchor    model.Anchor
	Terminal  model.Terminal
}

// Write serializes c followed by its SHA3-256 checksum.
func Write(w io.Writer, c *Consignment) error {
	h := sha3.New256()
	e := model.NewEncoder(io.MultiWriter(w, h))
	e.Fixed(fileMagic)
	e.U16(fileVersion)
	e.U8(uint8(c.Kind))
	e.Fixed(c.ContractID[:])

	record := func(tag RecordTag, payload []byte) {
		e.U8(uint8(tag))
		e.Bytes(payload)
	}

	raw, err := model.MarshalOperation(c.Genesis)
	if err != nil {
		return err
	}
	record(TagGenesis, raw)
	for _, a := range c.Anchors {
		raw, err := model.MarshalAnchor(a)
		if err != nil {
			return err
		}
		record(TagAnchor, raw)
	}
	for _, op := range c.Operations {
		raw, err := model.MarshalOperation(op)
		if err != nil {
			return err
		}
		record(TagOperation, raw)
	}
	for _, t := range c.Terminals {
		record(TagTerminal, encodeTerminal(t))
	}
	e.U8(uint8(tagEnd))
	if err := e.Err(); err != nil {
		return fmt.Errorf("write consignment: %w", err)
	}
	_, err = w.Write(h.Sum(nil))
	return err
}

// Marshal is Write into a fresh slice.
func Marshal(c *Consignment) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader decodes a consignment stream record by record while hashing it.
// The checksum is verified when the end record is reached, so callers must
// not act on records before Next returns io.EOF.
type Reader struct {
	raw      io.Reader
	hash     hash.Hash
	dec      *model.Decoder
	header   Header
	checksum []byte
	done     bool
}

// NewReader reads and checks the header.
func NewReader(r io.Reader) (*Reader, error) {
	h := sha3.New256()
	rd := &Reader{raw: r, hash: h, dec: model.NewDecoder(io.TeeReader(r, h))}

	magic := rd.dec.Fixed(len(fileMagic))
	rd.header.Version = rd.dec.U16()
	rd.header.Kind = Kind(rd.dec.U8())
	copy(rd.header.ContractID[:], rd.dec.Fixed(chainhash.HashSize))
	if err := rd.dec.Err(); err != nil {
		return nil, fmt.Errorf("read consignment header: %w", err)
	}
	if !bytes.Equal(magic, fileMagic) {
		return nil, fmt.Errorf("%w: magic %q", ErrMalformed, magic)
	}
	if rd.header.Version != fileVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, rd.header.Version)
	}
	if rd.header.Kind != KindContract && rd.header.Kind != KindTransfer {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, rd.header.Kind)
	}
	return rd, nil
}

// Header returns the decoded header.
func (r *Reader) Header() Header {
	return r.header
}

// Checksum is the verified trailer, available after Next returned io.EOF.
func (r *Reader) Checksum() []byte {
	return r.checksum
}

// Next returns the next record, or io.EOF after the checksum has been verified.
func (r *Reader) Next() (Record, error) {
	if r.done {
		return Record{}, io.EOF
	}
	tag := RecordTag(r.dec.U8())
	if err := r.dec.Err(); err != nil {
		return Record{}, fmt.Errorf("read record tag: %w", err)
	}
	if tag == tagEnd {
		return Record{}, r.finish()
	}

	payload := r.dec.Bytes("record")
	if err := r.dec.Err(); err != nil {
		return Record{}, fmt.Errorf("read record %#x: %w", tag, err)
	}
	rec := Record{Tag: tag}
	var err error
	switch tag {
	case TagGenesis, TagOperation:
		rec.Operation, err = model.DecodeOperation(bytes.NewReader(payload))
	case TagAnchor:
		rec.Anchor, err = model.DecodeAnchor(bytes.NewReader(payload))
	case TagTerminal:
		rec.Terminal, err = decodeTerminal(payload)
	default:
		err = fmt.Errorf("%w: unknown record tag %#x", ErrMalformed, tag)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *Reader) finish() error {
	sum := r.hash.Sum(nil)
	trailer := make([]byte, checksumSize)
	if _, err := io.ReadFull(r.raw, trailer); err != nil {
		return fmt.Errorf("%w: missing checksum", ErrMalformed)
	}
	if !bytes.Equal(sum, trailer) {
		return fmt.Errorf("%w: consignment digest %x, trailer %x", ErrChecksumMismatch, sum, trailer)
	}
	r.checksum = trailer
	r.done = true
	return io.EOF
}

// Read decodes a whole consignment and checks its structure.
func Read(r io.Reader) (*Consignment, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	c := &Consignment{Kind: rd.header.Kind, ContractID: rd.header.ContractID}
	genesisSeen := false
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch rec.Tag {
		case TagGenesis:
			if genesisSeen {
				return nil, fmt.Errorf("%w: second genesis record", ErrMalformed)
			}
			c.Genesis, genesisSeen = rec.Operation, true
		case TagOperation:
			c.Operations = append(c.Operations, rec.Operation)
		case TagAnchor:
			c.Anchors = append(c.Anchors, rec.Anchor)
		case TagTerminal:
			c.Terminals = append(c.Terminals, rec.Terminal)
		}
	}
	if err := c.check(genesisSeen); err != nil {
		return nil, err
	}
	return c, nil
}

// Unmarshal is Read over raw, rejecting trailing bytes.
func Unmarshal(raw []byte) (*Consignment, error) {
	r := bytes.NewReader(raw)
	c, err := Read(r)
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("%w: %d bytes after checksum", ErrMalformed, r.Len())
	}
	return c, nil
}

func (c *Consignment) check(genesisSeen bool) error {
	if !genesisSeen || !c.Genesis.IsGenesis() {
		return fmt.Errorf("%w: missing genesis", ErrMalformed)
	}
	if c.Genesis.Contract() != c.ContractID {
		return fmt.Errorf("%w: genesis is not contract %s", ErrMalformed, c.ContractID)
	}
	for _, op := range c.Operations {
		if op.IsGenesis() || op.ContractID != c.ContractID {
			return fmt.Errorf("%w: operation %s does not belong to contract %s", ErrMalformed, op.ID(), c.ContractID)
		}
	}
	for _, a := range c.Anchors {
		if a.ContractID != c.ContractID {
			return fmt.Errorf("%w: anchor %s for another contract", ErrMalformed, a.Txid)
		}
	}
	switch c.Kind {
	case KindContract:
		if len(c.Operations) > 0 || len(c.Terminals) > 0 {
			return fmt.Errorf("%w: contract consignment carries transfers", ErrMalformed)
		}
	case KindTransfer:
		if len(c.Terminals) == 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, ErrNoTerminals)
		}
	}
	return nil
}

func encodeTerminal(t model.Terminal) []byte {
	buf := make([]byte, 0, terminalSize)
	buf = append(buf, t.Op[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.Type))
	return binary.BigEndian.AppendUint16(buf, t.No)
}

func decodeTerminal(raw []byte) (model.Terminal, error) {
	if len(raw) != terminalSize {
		return model.Terminal{}, fmt.Errorf("%w: terminal of %d bytes", ErrMalformed, len(raw))
	}
	var t model.Terminal
	copy(t.Op[:], raw[:chainhash.HashSize])
	t.Type = model.AssignmentType(binary.BigEndian.Uint16(raw[chainhash.HashSize:]))
	t.No = binary.BigEndian.Uint16(raw[chainhash.HashSize+2:])
	return t, nil
}
