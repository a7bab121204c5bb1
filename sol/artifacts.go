package sol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/tidwall/gjson"
)

type ContractKind string

const (
	KindContract  ContractKind = "contract"
	KindAbstract  ContractKind = "abstract"
	KindInterface ContractKind = "interface"
	KindLibrary   ContractKind = "library"
)

type Contract struct {
	Name            string       `json:"name"`
	SourcePath      string       `json:"sourcePath"`
	CompilerVersion string       `json:"compilerVersion,omitempty"`
	Kind            ContractKind `json:"kind,omitempty"`
	Metadata        *Metadata    `json:"metadata,omitempty"`

	ABI json.RawMessage `json:"abi"`
	Bin string          `json:"bin"`
}

// CompilationResult holds artifacts in the order the compiler reported them.
type CompilationResult struct {
	SourceHash      string       `json:"sourceHash"`
	CompilerVersion string       `json:"compilerVersion,omitempty"`
	Contracts       []*Contract  `json:"contracts"`
	Diagnostics     []Diagnostic `json:"diagnostics,omitempty"`
}

func (r *CompilationResult) Len() int {
	return len(r.Contracts)
}

func (r *CompilationResult) Names() []string {
	names := make([]string, 0, len(r.Contracts))
	for _, c := range r.Contracts {
		names = append(names, c.Name)
	}

	return names
}

func (r *CompilationResult) Contract(name string) (*Contract, bool) {
	for _, c := range r.Contracts {
		if c.Name == name {
			return c, true
		}
	}

	return nil, false
}

// First returns the first contract reported by the compiler, for callers that
// deploy a single contract per source.
func (r *CompilationResult) First() *Contract {
	if len(r.Contracts) == 0 {
		return nil
	}

	return r.Contracts[0]
}

func (r *CompilationResult) Warnings() []Diagnostic {
	_, warnings := Partition(r.Diagnostics)
	return warnings
}

var (
	hexObjectRx = regexp.MustCompile(`^[0-9a-f]+$`)

	astContractDefinitions, _ = gojq.Parse(`.nodes[]? | select(.nodeType == "ContractDefinition") | {name: .name, kind: .contractKind, abstract: (.abstract // false)}`)
)

// normalizeBytecode returns the canonical 0x-prefixed lowercase form.
func normalizeBytecode(object string) string {
	object = strings.TrimSpace(object)
	if strings.HasPrefix(object, "0x") || strings.HasPrefix(object, "0X") {
		object = object[2:]
	}

	if len(object) == 0 {
		return ""
	}

	return "0x" + strings.ToLower(object)
}

// contractKinds reads contract definitions from the AST of the virtual source.
// A missing or unreadable AST yields an empty map.
func contractKinds(output []byte) map[string]ContractKind {
	kinds := make(map[string]ContractKind)

	ast := gjson.GetBytes(output, "sources."+escapeJSONPathKey(VirtualFileName)+".ast")
	if !ast.Exists() {
		return kinds
	}

	var astValue interface{}
	if err := json.Unmarshal([]byte(ast.Raw), &astValue); err != nil {
		return kinds
	}

	iter := astContractDefinitions.Run(astValue)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		def, ok := v.(map[string]interface{})
		if !ok {
			continue
		}

		name, _ := def["name"].(string)
		kind, _ := def["kind"].(string)
		abstract, _ := def["abstract"].(bool)

		switch {
		case abstract:
			kinds[name] = KindAbstract
		case kind == string(KindInterface):
			kinds[name] = KindInterface
		case kind == string(KindLibrary):
			kinds[name] = KindLibrary
		default:
			kinds[name] = KindContract
		}
	}

	return kinds
}

// ExtractContracts validates the compiler output for the virtual source and
// turns it into a CompilationResult. Any contract without ABI or bytecode
// fails the whole result.
func ExtractContracts(output []byte, compilerVersion string) (*CompilationResult, error) {
	contracts := gjson.GetBytes(output, "contracts")
	if !contracts.Exists() || !contracts.IsObject() {
		return nil, noContractsError("no contracts found in compiler output")
	}

	file := contracts.Get(escapeJSONPathKey(VirtualFileName))
	if !file.Exists() || !file.IsObject() {
		return nil, noContractsError(fmt.Sprintf("no contracts found in '%s'", VirtualFileName))
	}

	var names []string
	file.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})

	if len(names) == 0 {
		return nil, noContractsError("no contracts found in source")
	}

	kinds := contractKinds(output)
	result := &CompilationResult{
		CompilerVersion: compilerVersion,
		Contracts:       make([]*Contract, 0, len(names)),
	}

	for _, name := range names {
		c := file.Get(escapeJSONPathKey(name))

		abi := c.Get("abi")
		if !abi.Exists() || !abi.IsArray() {
			return nil, &ValidationError{
				Contract: name,
				Reason:   fmt.Sprintf("no ABI found for contract '%s'", name),
			}
		}

		bin := normalizeBytecode(c.Get("evm.bytecode.object").String())
		if len(bin) == 0 {
			reason := fmt.Sprintf("no bytecode found for contract '%s'", name)
			switch kinds[name] {
			case KindAbstract:
				reason += " (abstract contract)"
			case KindInterface:
				reason += " (interface)"
			}

			return nil, &ValidationError{
				Contract: name,
				Reason:   reason,
			}
		} else if !hexObjectRx.MatchString(bin[2:]) {
			return nil, &ValidationError{
				Contract: name,
				Reason:   fmt.Sprintf("bytecode of contract '%s' is not valid hex, unlinked libraries are not supported", name),
			}
		}

		contract := &Contract{
			Name:            name,
			SourcePath:      VirtualFileName,
			CompilerVersion: compilerVersion,
			Kind:            kinds[name],

			ABI: json.RawMessage(abi.Raw),
			Bin: bin,
		}
		contract.Metadata = ExtractMetadata(contract.Bin)

		result.Contracts = append(result.Contracts, contract)
	}

	return result, nil
}
