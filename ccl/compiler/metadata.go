package compiler

import (
	"golang.org/x/crypto/sha3"

	chainjson "github.com/InterCooperative-Network/icn-core-sub007/encoding/json"
	"github.com/InterCooperative-Network/icn-core-sub007/errors"
	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
)

// ParamInfo is one entry parameter in contract metadata.
type ParamInfo struct {
	// Name is the parameter name.
	Name string `json:"name"`

	// Type is the declared type.
	Type string `json:"declared_type"`
}

// Metadata describes a compiled module for tooling that schedules,
// audits, or content-addresses contracts without decoding wasm.
type Metadata struct {
	// Export is the name of the module's entry export.
	Export string `json:"export"`

	// Params lists the entry parameters in declaration order.
	Params []ParamInfo `json:"params,omitempty"`

	// Returns is the type the entry yields.
	Returns string `json:"returns"`

	// SizeBytes is the length of the encoded module.
	SizeBytes int `json:"size_bytes"`

	// ContentHash is the SHA3-256 digest of the module bytes, the
	// contract's content address.
	ContentHash chainjson.HexBytes `json:"content_hash"`

	// Imports lists the host functions the module imports, in import
	// order.
	Imports []string `json:"imports,omitempty"`

	// Opcodes is the human-readable instruction listing of the entry
	// body.
	Opcodes string `json:"opcodes,omitempty"`
}

// buildMetadata derives the metadata document from the encoded module
// and the checked entry declaration. It reparses the module so that
// imports and opcodes describe the bytes actually produced, not the
// compiler's intent.
func buildMetadata(code []byte, entry *FuncDecl) (Metadata, error) {
	p, err := wasm.ParseModule(code)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "reparsing module")
	}

	hash := sha3.Sum256(code)
	md := Metadata{
		Export:      "run",
		Returns:     entry.retType.String(),
		SizeBytes:   len(code),
		ContentHash: hash[:],
	}
	for _, par := range entry.Params {
		md.Params = append(md.Params, ParamInfo{Name: par.Name, Type: par.typ.String()})
	}
	for _, imp := range p.Imports {
		if imp.Kind == wasm.ExternFunc {
			md.Imports = append(md.Imports, imp.Name)
		}
	}

	idx, ok := p.ExportedFunc("run")
	if !ok {
		return Metadata{}, errors.New("module has no run export")
	}
	md.Opcodes, err = p.FuncOpcodes(idx)
	if err != nil {
		return Metadata{}, errors.Wrap(err, "listing run")
	}
	return md, nil
}
