package deployer

import (
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// AbiMethodInputMapperFunc produces constructor values for the named contract
// given its ABI inputs.
type AbiMethodInputMapperFunc func(contractName string, inputs abi.Arguments) ([]interface{}, error)

// ErrNoConstructorArgs is returned by mappers for a contract that expects
// constructor inputs but has no entry.
var ErrNoConstructorArgs = errors.New("no constructor args provided")

// StringArgsMapper maps textual constructor arguments, as they come from the
// command line, keyed by contract name. Contracts without an entry get none.
func StringArgsMapper(args map[string][]string) AbiMethodInputMapperFunc {
	return func(contractName string, inputs abi.Arguments) ([]interface{}, error) {
		contractArgs, ok := args[contractName]
		if !ok {
			if len(inputs) == 0 {
				return nil, nil
			}

			return nil, errors.Wrapf(ErrNoConstructorArgs, "constructor of %s", contractName)
		}

		mapped, err := MapStringArgs(inputs, contractArgs)
		if err != nil {
			return nil, errors.Wrapf(err, "constructor of %s", contractName)
		}

		return mapped, nil
	}
}

// MapStringArgs converts string values into the Go types the ABI packer
// expects for the given inputs.
func MapStringArgs(inputs abi.Arguments, args []string) ([]interface{}, error) {
	if len(inputs) != len(args) {
		err := errors.Errorf("wrong args count, expected %d but got %d", len(inputs), len(args))
		return nil, err
	} else if len(args) == 0 {
		return nil, nil
	}

	out := make([]interface{}, len(inputs))

	for idx, input := range inputs {
		value, err := mapStringArg(input.Type, args[idx])
		if err != nil {
			return nil, errors.Wrapf(err, "argument %s (idx %d) type %s", input.Name, idx, input.Type.String())
		}

		out[idx] = value
	}

	return out, nil
}

func mapStringArg(typ abi.Type, arg string) (interface{}, error) {
	switch typ.T {
	case abi.IntTy:
		if typ.Size > 64 {
			i, ok := new(big.Int).SetString(arg, 0)
			if !ok {
				return nil, errors.Errorf("failed to parse: %s", arg)
			}

			return i, nil
		}

		i, err := strconv.ParseInt(arg, 0, typ.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse: %s", arg)
		}

		switch typ.Size {
		case 8:
			return int8(i), nil
		case 16:
			return int16(i), nil
		case 32:
			return int32(i), nil
		case 64:
			return int64(i), nil
		}

		// odd sizes like int24 are packed from *big.Int
		return big.NewInt(i), nil

	case abi.UintTy:
		if typ.Size > 64 {
			i, ok := new(big.Int).SetString(arg, 0)
			if !ok || i.Sign() < 0 {
				return nil, errors.Errorf("failed to parse: %s", arg)
			}

			return i, nil
		}

		i, err := strconv.ParseUint(arg, 0, typ.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse: %s", arg)
		}

		switch typ.Size {
		case 8:
			return uint8(i), nil
		case 16:
			return uint16(i), nil
		case 32:
			return uint32(i), nil
		case 64:
			return i, nil
		}

		return new(big.Int).SetUint64(i), nil

	case abi.BoolTy:
		return toBool(arg), nil

	case abi.StringTy:
		return arg, nil

	case abi.AddressTy:
		if !common.IsHexAddress(arg) {
			return nil, errors.Errorf("not an address: %s", arg)
		}

		return common.HexToAddress(arg), nil

	case abi.BytesTy:
		return common.FromHex(arg), nil

	case abi.FixedBytesTy:
		raw := common.FromHex(arg)
		if len(raw) > typ.Size {
			return nil, errors.Errorf("value longer than %d bytes: %s", typ.Size, arg)
		}

		return fixedBytes(typ, raw), nil

	default:
		return nil, errors.Errorf("unsupported type: %s", typ.String())
	}
}

func toBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true
	default:
		return false
	}
}

// fixedBytes copies raw into a [N]byte array, the only form bytesN packs from.
func fixedBytes(typ abi.Type, raw []byte) interface{} {
	arr := reflect.New(typ.GetType()).Elem()
	reflect.Copy(arr, reflect.ValueOf(raw))
	return arr.Interface()
}
