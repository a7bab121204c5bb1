package sol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor"
)

// Metadata is the part of the CBOR-encoded contract metadata solc appends to
// the bytecode that is useful to report after compilation.
// Reference: https://docs.soliditylang.org/en/latest/metadata.html
type Metadata struct {
	SolcVersion  string `json:"solcVersion,omitempty"`
	BytecodeHash string `json:"bytecodeHash,omitempty"`
}

var bytecodeHashKeys = [...]string{
	"ipfs",
	"bzzr1",
	"bzzr0",
}

// ExtractMetadata decodes the metadata trailer of 0x-prefixed bytecode. The
// trailer is a CBOR map followed by its big-endian uint16 length. Returns nil
// if the bytecode carries no decodable trailer.
func ExtractMetadata(bin string) *Metadata {
	code, err := hex.DecodeString(strings.TrimPrefix(bin, "0x"))
	if err != nil || len(code) < 2 {
		return nil
	}

	cborLen := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	if cborLen == 0 || cborLen > len(code)-2 {
		return nil
	}

	var fields map[string]interface{}
	if err := cbor.Unmarshal(code[len(code)-2-cborLen:len(code)-2], &fields); err != nil {
		return nil
	}

	meta := &Metadata{}
	if v, ok := fields["solc"].([]byte); ok && len(v) == 3 {
		meta.SolcVersion = fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
	} else if s, ok := fields["solc"].(string); ok {
		meta.SolcVersion = s
	}

	for _, key := range bytecodeHashKeys {
		if v, ok := fields[key].([]byte); ok {
			meta.BytecodeHash = key + ":" + hex.EncodeToString(v)
			break
		}
	}

	if meta.SolcVersion == "" && meta.BytecodeHash == "" {
		return nil
	}

	return meta
}
