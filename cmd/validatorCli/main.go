package main

import (
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/Layr-Labs/eigenx-account-validators/internal/aws"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/config"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/digest"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/logger"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSigner"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSigner/awsKmsOwnerSigner"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/ownerSigner/inMemoryOwnerSigner"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/replaySafe"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/signatures"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators/multisig"
	"github.com/Layr-Labs/eigenx-account-validators/pkg/validators/singleSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "validator-cli",
		Usage: "Offline tooling for smart account validation modules",
		Description: `Builds the digests, signatures and payloads the validation modules consume.

This client can:
- Compute actual and minimal user operation digests and replay-safe hashes
- Sign digests as a multisig owner with a local key or an AWS KMS key
- Pack and inspect multisig signature blobs
- Encode install and uninstall payloads`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvValidatorDebug},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "userop-digest",
				Usage: "Compute the actual and minimal digests of a user operation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "userop",
						Usage:    "User operation JSON, or @path to a JSON file",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "chain-id",
						Usage:    fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
						EnvVars:  []string{config.EnvValidatorChainID},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "entry-point",
						Usage:   "Entry point address (defaults to the v0.6 entry point)",
						Value:   config.EntryPointV06,
						EnvVars: []string{config.EnvValidatorEntryPoint},
					},
				},
				Action: userOpDigestCommand,
			},
			{
				Name:  "replay-safe-hash",
				Usage: "Compute the hash a module expects signed for ERC-1271 validation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "module-name",
						Usage: "Module EIP-712 domain name",
						Value: multisig.DefaultName,
					},
					&cli.StringFlag{
						Name:  "module-version",
						Usage: "Module EIP-712 domain version",
						Value: multisig.DefaultVersion,
					},
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Smart account address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "hash",
						Usage:    "Raw 32 byte digest",
						Required: true,
					},
				},
				Action: replaySafeHashCommand,
			},
			{
				Name:  "mutation-digest",
				Usage: "Compute the digest an account authority signs to approve a configuration change",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "operation",
						Usage:    fmt.Sprintf("One of %s, %s, %s, %s", validators.MutationInstall, validators.MutationUninstall, validators.MutationTransferSigner, validators.MutationUpdateOwnership),
						Required: true,
					},
					&cli.StringFlag{Name: "module-name", Usage: "Registered module name", Required: true},
					&cli.StringFlag{Name: "account", Usage: "Smart account address", Required: true},
					&cli.UintFlag{Name: "entity-id", Usage: "Entity id"},
					&cli.StringFlag{Name: "data", Usage: "Install or uninstall payload (hex)"},
					&cli.StringFlag{Name: "new-signer", Usage: "New signer of a signer transfer"},
					&cli.StringSliceFlag{Name: "add", Usage: "address:weight owner added by an ownership update"},
					&cli.StringSliceFlag{Name: "remove", Usage: "Owner address removed by an ownership update"},
					&cli.Uint64Flag{Name: "threshold", Usage: "Threshold after an ownership update, 0 keeps it"},
					&cli.Uint64Flag{Name: "expires-at", Usage: "Unix expiry of the authorization", Required: true},
				},
				Action: mutationDigestCommand,
			},
			{
				Name:  "sign-digest",
				Usage: "Sign a digest as an owner and print the slot signature",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "digest",
						Usage:    "32 byte digest to sign",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Slot kind: ecdsa or eth_sign",
						Value: signatures.KindECDSA.String(),
					},
					&cli.StringFlag{
						Name:    "private-key",
						Usage:   "Owner private key (hex)",
						EnvVars: []string{config.EnvValidatorOwnerKey},
					},
					&cli.StringFlag{
						Name:    "kms-key-id",
						Usage:   "AWS KMS key id of an ECC_SECG_P256K1 owner key",
						EnvVars: []string{config.EnvValidatorKMSKeyId},
					},
					&cli.StringFlag{
						Name:    "aws-region",
						Usage:   "AWS region override for the KMS key",
						EnvVars: []string{config.EnvValidatorAWSRegion},
					},
				},
				Action: signDigestCommand,
			},
			{
				Name:  "pack-signatures",
				Usage: "Pack owner signatures into a multisig signature blob",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "slot",
						Usage:    "kind:signer:signature, in order; the first slot must cover the actual digest",
						Required: true,
					},
				},
				Action: packSignaturesCommand,
			},
			{
				Name:  "decode-signatures",
				Usage: "Decode a multisig signature blob",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "blob",
						Usage:    "Signature blob (hex)",
						Required: true,
					},
				},
				Action: decodeSignaturesCommand,
			},
			{
				Name:  "encode-install-data",
				Usage: "Encode onInstall payloads",
				Subcommands: []*cli.Command{
					{
						Name:  "single-signer",
						Usage: "abi.encode(uint32 entityId, address signer)",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "entity-id", Usage: "Entity id"},
							&cli.StringFlag{Name: "signer", Usage: "Signer address", Required: true},
						},
						Action: encodeSingleSignerInstallCommand,
					},
					{
						Name:  "multisig",
						Usage: "abi.encode(uint32 entityId, address[] owners, uint256[] weights, uint256 threshold)",
						Flags: []cli.Flag{
							&cli.UintFlag{Name: "entity-id", Usage: "Entity id"},
							&cli.StringSliceFlag{Name: "owner", Usage: "address:weight", Required: true},
							&cli.Uint64Flag{Name: "threshold", Usage: "Signing weight threshold", Required: true},
						},
						Action: encodeMultisigInstallCommand,
					},
				},
			},
			{
				Name:  "encode-uninstall-data",
				Usage: "abi.encode(uint32 entityId)",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "entity-id", Usage: "Entity id"},
				},
				Action: encodeUninstallCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func userOpDigestCommand(c *cli.Context) error {
	op, err := readUserOp(c.String("userop"))
	if err != nil {
		return err
	}
	entryPoint, err := parseAddress("entry point", c.String("entry-point"))
	if err != nil {
		return err
	}
	digests, err := digest.Compute(op, entryPoint, new(big.Int).SetUint64(c.Uint64("chain-id")))
	if err != nil {
		return err
	}
	return printJSON(digests)
}

func replaySafeHashCommand(c *cli.Context) error {
	account, err := parseAddress("account", c.String("account"))
	if err != nil {
		return err
	}
	raw, err := parseHash("hash", c.String("hash"))
	if err != nil {
		return err
	}
	builder, err := replaySafe.NewBuilder(c.String("module-name"), c.String("module-version"))
	if err != nil {
		return err
	}
	fmt.Println(builder.Build(account, raw).Hex())
	return nil
}

func mutationPayload(c *cli.Context) ([]byte, error) {
	switch op := c.String("operation"); op {
	case validators.MutationInstall, validators.MutationUninstall:
		data, err := hexutil.Decode(c.String("data"))
		if err != nil {
			return nil, fmt.Errorf("invalid data hex: %w", err)
		}
		return data, nil
	case validators.MutationTransferSigner:
		signer, err := parseAddress("new signer", c.String("new-signer"))
		if err != nil {
			return nil, err
		}
		return validators.TransferPayload(signer), nil
	case validators.MutationUpdateOwnership:
		add := make([]types.Owner, 0)
		for _, raw := range c.StringSlice("add") {
			o, err := parseOwner(raw)
			if err != nil {
				return nil, err
			}
			add = append(add, o)
		}
		remove := make([]common.Address, 0)
		for _, raw := range c.StringSlice("remove") {
			addr, err := parseAddress("removed owner", raw)
			if err != nil {
				return nil, err
			}
			remove = append(remove, addr)
		}
		return validators.OwnershipPayload(add, remove, c.Uint64("threshold")), nil
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}
}

func mutationDigestCommand(c *cli.Context) error {
	account, err := parseAddress("account", c.String("account"))
	if err != nil {
		return err
	}
	payload, err := mutationPayload(c)
	if err != nil {
		return err
	}
	m := &validators.Mutation{
		Operation: c.String("operation"),
		Module:    c.String("module-name"),
		Account:   account,
		EntityId:  types.EntityId(c.Uint("entity-id")),
		Payload:   payload,
		ExpiresAt: c.Uint64("expires-at"),
	}
	fmt.Println(m.Digest().Hex())
	return nil
}

func newOwnerSigner(c *cli.Context) (ownerSigner.IOwnerSigner, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	privateKey, keyId := c.String("private-key"), c.String("kms-key-id")
	switch {
	case privateKey != "" && keyId != "":
		return nil, fmt.Errorf("use either --private-key or --kms-key-id, not both")
	case privateKey != "":
		return inMemoryOwnerSigner.NewInMemoryOwnerSignerFromHex(privateKey, l)
	case keyId != "":
		awsCfg, err := aws.LoadAWSConfig(c.Context, c.String("aws-region"))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if arn, err := aws.CallerArn(c.Context, awsCfg); err == nil {
			l.Sugar().Debugw("Using AWS identity", "arn", arn)
		}
		return awsKmsOwnerSigner.NewAWSKMSOwnerSignerFromConfig(c.Context, awsCfg, keyId, l)
	default:
		return nil, fmt.Errorf("an owner key is required: --private-key or --kms-key-id")
	}
}

type signedSlot struct {
	Kind      string         `json:"kind"`
	Signer    common.Address `json:"signer"`
	Signature hexutil.Bytes  `json:"signature"`
}

func signDigestCommand(c *cli.Context) error {
	d, err := parseHash("digest", c.String("digest"))
	if err != nil {
		return err
	}
	kind, err := signatures.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}
	signer, err := newOwnerSigner(c)
	if err != nil {
		return err
	}
	slot, err := ownerSigner.SignSlot(c.Context, signer, kind, d)
	if err != nil {
		return err
	}
	return printJSON(&signedSlot{Kind: slot.Kind.String(), Signer: slot.Signer, Signature: slot.Signature})
}

func packSignaturesCommand(c *cli.Context) error {
	inputs := make([]signatures.SlotInput, 0)
	for _, raw := range c.StringSlice("slot") {
		slot, err := parseSlot(raw)
		if err != nil {
			return err
		}
		inputs = append(inputs, slot)
	}
	fmt.Println(hexutil.Encode(signatures.Encode(inputs)))
	return nil
}

type decodedSlot struct {
	Index     int            `json:"index"`
	Kind      string         `json:"kind"`
	Signer    common.Address `json:"signer,omitempty"`
	Signature hexutil.Bytes  `json:"signature"`
}

func decodeSignaturesCommand(c *cli.Context) error {
	blob, err := hexutil.Decode(c.String("blob"))
	if err != nil {
		return fmt.Errorf("invalid blob hex: %w", err)
	}
	slots, err := signatures.Decode(blob)
	if err != nil {
		return err
	}
	out := make([]decodedSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, decodedSlot{Index: s.Index, Kind: s.Kind.String(), Signer: s.Signer, Signature: s.Signature})
	}
	return printJSON(out)
}

func encodeSingleSignerInstallCommand(c *cli.Context) error {
	signer, err := parseAddress("signer", c.String("signer"))
	if err != nil {
		return err
	}
	data, err := singleSigner.EncodeInstallData(types.EntityId(c.Uint("entity-id")), signer)
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(data))
	return nil
}

func encodeMultisigInstallCommand(c *cli.Context) error {
	owners := make([]types.Owner, 0)
	for _, raw := range c.StringSlice("owner") {
		o, err := parseOwner(raw)
		if err != nil {
			return err
		}
		owners = append(owners, o)
	}
	data, err := multisig.EncodeInstallData(&multisig.InstallData{
		EntityId:  types.EntityId(c.Uint("entity-id")),
		Owners:    owners,
		Threshold: c.Uint64("threshold"),
	})
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(data))
	return nil
}

func encodeUninstallCommand(c *cli.Context) error {
	data, err := validators.EncodeUninstallData(types.EntityId(c.Uint("entity-id")))
	if err != nil {
		return err
	}
	fmt.Println(hexutil.Encode(data))
	return nil
}
