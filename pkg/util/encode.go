package util

import "github.com/ethereum/go-ethereum/accounts/abi"

// MustType builds an ABI type from its canonical solidity name and panics on typos.
func MustType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// Arguments builds an abi.encode argument list from canonical type names, in order.
func Arguments(typeNames ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(typeNames))
	for _, name := range typeNames {
		args = append(args, abi.Argument{Type: MustType(name)})
	}
	return args
}
