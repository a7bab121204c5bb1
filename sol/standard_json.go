package sol

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
)

// VirtualFileName is the source unit name literal source text is compiled under.
const VirtualFileName = "contract.sol"

const LanguageSolidity = "Solidity"

type EVMVersion string

const (
	EVMVersionDefault        EVMVersion = ""
	EVMVersionByzantium      EVMVersion = "byzantium"
	EVMVersionConstantinople EVMVersion = "constantinople"
	EVMVersionPetersburg     EVMVersion = "petersburg"
	EVMVersionIstanbul       EVMVersion = "istanbul"
	EVMVersionBerlin         EVMVersion = "berlin"
	EVMVersionLondon         EVMVersion = "london"
	EVMVersionParis          EVMVersion = "paris"
	EVMVersionShanghai       EVMVersion = "shanghai"
	EVMVersionCancun         EVMVersion = "cancun"
)

type ContractContent struct {
	Keccak256 string `json:"keccak256,omitempty"`
	Content   string `json:"content"`
}

type OptimizerSettings struct {
	Enabled bool `json:"enabled"`
	Runs    int  `json:"runs,omitempty"`
}

type Settings struct {
	Remappings      []string                       `json:"remappings,omitempty"`
	Optimizer       *OptimizerSettings             `json:"optimizer,omitempty"`
	EvmVersion      EVMVersion                     `json:"evmVersion,omitempty"`
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
}

type StandardJSONInput struct {
	Language string                     `json:"language"`
	Sources  map[string]ContractContent `json:"sources"`
	Settings Settings                   `json:"settings"`
}

// CompileSettings are the knobs of a single compilation request.
type CompileSettings struct {
	OptimizerRuns int
	EVMVersion    EVMVersion
}

// NewStandardJSONInput wraps the source text as the single virtual source unit and
// requests ABI and creation bytecode for every contract, plus the AST.
func NewStandardJSONInput(source string, settings CompileSettings) *StandardJSONInput {
	in := &StandardJSONInput{
		Language: LanguageSolidity,
		Sources: map[string]ContractContent{
			VirtualFileName: {
				Keccak256: crypto.Keccak256Hash([]byte(source)).Hex(),
				Content:   source,
			},
		},
		Settings: Settings{
			EvmVersion: settings.EVMVersion,
			OutputSelection: map[string]map[string][]string{
				"*": {
					"*": {"abi", "evm.bytecode"},
					"":  {"ast"},
				},
			},
		},
	}

	if settings.OptimizerRuns > 0 {
		in.Settings.Optimizer = &OptimizerSettings{
			Enabled: true,
			Runs:    settings.OptimizerRuns,
		}
	}

	return in
}

func (in *StandardJSONInput) Marshal() ([]byte, error) {
	return json.Marshal(in)
}

// StandardJSONError is a single entry of the compiler's diagnostics array.
type StandardJSONError struct {
	Severity         string          `json:"severity"`
	Type             string          `json:"type,omitempty"`
	Component        string          `json:"component,omitempty"`
	Message          string          `json:"message"`
	FormattedMessage string          `json:"formattedMessage,omitempty"`
	SourceLocation   *SourceLocation `json:"sourceLocation,omitempty"`
}

type SourceLocation struct {
	File  string `json:"file"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}
