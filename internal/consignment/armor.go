package consignment

import (
	"bytes"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
)

// ArmorType is the PEM block type of armored consignments.
const ArmorType = "SEAL CONSIGNMENT"

// Armor writes c as a PEM block with Id, Type and Checksum headers.
func Armor(w io.Writer, c *Consignment) error {
	raw, err := Marshal(c)
	if err != nil {
		return err
	}
	block := &pem.Block{
		Type: ArmorType,
		Headers: map[string]string{
			"Id":       c.ContractID.String(),
			"Type":     c.Kind.String(),
			"Checksum": hex.EncodeToString(raw[len(raw)-checksumSize:]),
		},
		Bytes: raw,
	}
	return pem.Encode(w, block)
}

// Dearmor decodes the first armored consignment in data and checks that its
// headers agree with the payload.
func Dearmor(data []byte) (*Consignment, error) {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil || block.Type != ArmorType {
		return nil, fmt.Errorf("%w: no %s block", ErrMalformed, ArmorType)
	}
	c, err := Unmarshal(block.Bytes)
	if err != nil {
		return nil, err
	}
	if sum := block.Headers["Checksum"]; sum != "" && sum != hex.EncodeToString(block.Bytes[len(block.Bytes)-checksumSize:]) {
		return nil, fmt.Errorf("%w: armor header checksum %s", ErrChecksumMismatch, sum)
	}
	if id := block.Headers["Id"]; id != "" && id != c.ContractID.String() {
		return nil, fmt.Errorf("%w: armor header id %s", ErrMalformed, id)
	}
	if kind := block.Headers["Type"]; kind != "" && kind != c.Kind.String() {
		return nil, fmt.Errorf("%w: armor header type %s", ErrMalformed, kind)
	}
	return c, nil
}

// Load decodes either the binary or the armored form.
func Load(data []byte) (*Consignment, error) {
	if bytes.HasPrefix(data, fileMagic) {
		return Unmarshal(data)
	}
	return Dearmor(data)
}
