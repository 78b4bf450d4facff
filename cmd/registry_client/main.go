package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/urfave/cli/v2"

	"github.com/ajna-inc/kanon-registry/cmd/flags"
	"github.com/ajna-inc/kanon-registry/cmd/registrycommon"
	"github.com/ajna-inc/kanon-registry/interfaces"
)

var flagIssuer = &cli.StringFlag{
	Name:     "issuer",
	Required: true,
	Usage:    "issuer DID, e.g. did:kanon:mainnet:abc",
}
var flagSchema = &cli.StringFlag{
	Name:     "schema",
	Required: true,
	Usage:    "schema identifier <did>/resources/<id>",
}
var flagDocument = &cli.StringFlag{
	Name:     "document",
	Required: true,
	Usage:    "path to a JSON DID document",
}
var flagNetwork = &cli.StringFlag{
	Name:  "network",
	Value: interfaces.DefaultNetwork,
	Usage: "ledger network of the credential",
}

const usage string = `Reads and writes anoncreds artifacts and DIDs directly on the Kanon ledger,
using the networks and signing keys of a registry configuration file.`

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: usage,
		Flags: append([]cli.Flag{
			registrycommon.ConfigFlag,
			flags.LogServiceFlagFn("registry-client"),
		}, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "schema",
				Usage: "register and resolve schemas",
				Subcommands: []*cli.Command{
					{
						Name:  "register",
						Usage: "register a schema",
						Flags: []cli.Flag{
							flagIssuer,
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringFlag{Name: "version", Value: "1.0"},
							&cli.StringSliceFlag{Name: "attr", Required: true, Usage: "attribute name, repeatable"},
						},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							return registration(c.stack.Registry.RegisterSchema(cCtx.Context, interfaces.Schema{
								IssuerID:  cCtx.String(flagIssuer.Name),
								Name:      cCtx.String("name"),
								Version:   cCtx.String("version"),
								AttrNames: cCtx.StringSlice("attr"),
							}))
						}),
					},
					{
						Name:      "get",
						Usage:     "resolve a schema",
						ArgsUsage: "<schema-id>",
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							id, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							return resolution(c.stack.Registry.GetSchema(cCtx.Context, id))
						}),
					},
					{
						Name:  "approve-issuer",
						Usage: "approve an issuer address for a schema",
						Flags: []cli.Flag{
							flagSchema,
							&cli.StringFlag{Name: "address", Required: true, Usage: "issuer account address"},
						},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							address := cCtx.String("address")
							if !common.IsHexAddress(address) {
								return fmt.Errorf("invalid issuer address %q", address)
							}
							receipt, err := c.stack.Registrar.AddApprovedIssuer(cCtx.Context, cCtx.String(flagSchema.Name), common.HexToAddress(address))
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
				},
			},
			{
				Name:  "cred-def",
				Usage: "register and resolve credential definitions",
				Subcommands: []*cli.Command{
					{
						Name:  "register",
						Usage: "register a credential definition",
						Flags: []cli.Flag{
							flagIssuer,
							flagSchema,
							&cli.StringFlag{Name: "tag", Value: "default"},
							&cli.StringFlag{Name: "value", Usage: "path to the JSON credential definition value"},
						},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							credDef := interfaces.CredentialDefinition{
								IssuerID: cCtx.String(flagIssuer.Name),
								SchemaID: cCtx.String(flagSchema.Name),
								Tag:      cCtx.String("tag"),
							}
							if path := cCtx.String("value"); path != "" {
								value, err := os.ReadFile(path)
								if err != nil {
									return fmt.Errorf("could not read value: %w", err)
								}
								if !json.Valid(value) {
									return fmt.Errorf("value in %s is not JSON", path)
								}
								credDef.Value = value
							}
							return registration(c.stack.Registry.RegisterCredentialDefinition(cCtx.Context, credDef))
						}),
					},
					{
						Name:      "get",
						Usage:     "resolve a credential definition",
						ArgsUsage: "<cred-def-id>",
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							id, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							return resolution(c.stack.Registry.GetCredentialDefinition(cCtx.Context, id))
						}),
					},
				},
			},
			{
				Name:  "did",
				Usage: "manage DIDs",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "register a DID with its document",
						Flags: []cli.Flag{flagDocument},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							doc, err := readDocument(cCtx.String(flagDocument.Name))
							if err != nil {
								return err
							}
							receipt, err := c.stack.Registrar.Create(cCtx.Context, doc)
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
					{
						Name:  "update",
						Usage: "anchor the hash of an updated DID document",
						Flags: []cli.Flag{flagDocument},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							doc, err := readDocument(cCtx.String(flagDocument.Name))
							if err != nil {
								return err
							}
							receipt, err := c.stack.Registrar.Update(cCtx.Context, doc)
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
					{
						Name:      "deactivate",
						Usage:     "deactivate a DID",
						ArgsUsage: "<did>",
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							did, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							receipt, err := c.stack.Registrar.Deactivate(cCtx.Context, did)
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
					{
						Name:      "get",
						Usage:     "resolve a DID document",
						ArgsUsage: "<did>",
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							did, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							resolved, err := c.stack.Resolver.GetDIDDocument(cCtx.Context, did)
							if err != nil {
								return err
							}
							return printJSON(resolved)
						}),
					},
					{
						Name:  "verify",
						Usage: "check a DID document against its anchored hash",
						Flags: []cli.Flag{flagDocument},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							doc, err := readDocument(cCtx.String(flagDocument.Name))
							if err != nil {
								return err
							}
							matches, err := c.stack.Resolver.AnchorMatches(cCtx.Context, doc)
							if err != nil {
								return err
							}
							return printJSON(map[string]interface{}{"did": doc.ID, "anchored": matches})
						}),
					},
				},
			},
			{
				Name:  "credential",
				Usage: "record and revoke issued credentials",
				Subcommands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "record an issued credential",
						Flags: []cli.Flag{
							flagIssuer,
							&cli.StringFlag{Name: "id", Required: true},
							&cli.StringFlag{Name: "cred-def", Required: true},
							&cli.StringFlag{Name: "subject", Required: true},
							&cli.DurationFlag{Name: "validity", Value: 365 * 24 * time.Hour},
							&cli.StringFlag{Name: "metadata", Value: "{}"},
						},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							now := time.Now().UTC()
							receipt, err := c.stack.Registrar.IssueCredential(cCtx.Context, interfaces.CredentialRecord{
								ID:           cCtx.String("id"),
								CredDefID:    cCtx.String("cred-def"),
								Issuer:       cCtx.String(flagIssuer.Name),
								Subject:      cCtx.String("subject"),
								IssuanceDate: now.Format(time.RFC3339),
								ExpiryDate:   now.Add(cCtx.Duration("validity")).Format(time.RFC3339),
								Metadata:     cCtx.String("metadata"),
							})
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
					{
						Name:      "revoke",
						Usage:     "revoke a credential",
						ArgsUsage: "<credential-id>",
						Flags:     []cli.Flag{flagNetwork},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							id, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							receipt, err := c.stack.Registrar.RevokeCredential(cCtx.Context, cCtx.String(flagNetwork.Name), id)
							if err != nil {
								return err
							}
							return printReceipt(receipt)
						}),
					},
					{
						Name:      "status",
						Usage:     "check whether a credential is revoked",
						ArgsUsage: "<credential-id>",
						Flags:     []cli.Flag{flagNetwork},
						Action: withClient(func(c *Client, cCtx *cli.Context) error {
							id, err := firstArg(cCtx)
							if err != nil {
								return err
							}
							revoked, err := c.stack.Resolver.IsCredentialRevoked(cCtx.Context, cCtx.String(flagNetwork.Name), id)
							if err != nil {
								return err
							}
							return printJSON(map[string]interface{}{"id": id, "revoked": revoked})
						}),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type Client struct {
	stack *registrycommon.Stack
}

func NewClientConfig(cCtx *cli.Context) (*Client, error) {
	stack, err := registrycommon.SetupStack(cCtx, flags.SetupLogger(cCtx), nil)
	if err != nil {
		return nil, err
	}
	return &Client{stack: stack}, nil
}

func withClient(action func(*Client, *cli.Context) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		c, err := NewClientConfig(cCtx)
		if err != nil {
			return err
		}
		defer c.stack.Close()
		return action(c, cCtx)
	}
}

func registration[T any](result interfaces.RegistrationResult[T]) error {
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Finished() {
		return cli.Exit("registration failed", 1)
	}
	return nil
}

func resolution[T any](result interfaces.ResolutionResult[T]) error {
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Resolved() {
		return cli.Exit("not resolved", 1)
	}
	return nil
}

func printReceipt(receipt *types.Receipt) error {
	return printJSON(map[string]interface{}{
		"transactionHash": receipt.TxHash.Hex(),
		"blockNumber":     receipt.BlockNumber.Uint64(),
	})
}

func firstArg(cCtx *cli.Context) (string, error) {
	if cCtx.NArg() != 1 {
		return "", errors.New("expected exactly one argument")
	}
	return cCtx.Args().First(), nil
}

func readDocument(path string) (interfaces.DidDocument, error) {
	var doc interfaces.DidDocument
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("could not read DID document: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("could not parse DID document: %w", err)
	}
	return doc, nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
