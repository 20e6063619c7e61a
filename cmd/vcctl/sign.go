package main

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"vcanchor/internal/signature"
)

const (
	keyTypeES256   = "es256"
	keyTypeES256K  = "es256k"
	keyTypeEd25519 = "ed25519"
)

// keyPair is what keygen prints. PublicKey is in the hex form DID documents carry.
type keyPair struct {
	Type       string `json:"type"`
	PrivateKey string `json:"private_key"`
	PublicKey  string `json:"public_key"`
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a key pair for a test DID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Value: keyTypeES256K,
				Usage: "es256 | es256k | ed25519",
			},
		},
		Action: func(c *cli.Context) error {
			kp, err := generateKey(c.String("type"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, kp)
		},
	}
}

func generateKey(typ string) (*keyPair, error) {
	switch strings.ToLower(typ) {
	case keyTypeES256K:
		priv, err := btcec.NewPrivateKey(btcec.S256())
		if err != nil {
			return nil, err
		}
		return &keyPair{
			Type:       keyTypeES256K,
			PrivateKey: hex.EncodeToString(priv.Serialize()),
			PublicKey:  hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		}, nil
	case keyTypeES256:
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, err
		}
		raw, err := priv.Bytes()
		if err != nil {
			return nil, err
		}
		pub, err := signature.P256PublicKeyBytes(&priv.PublicKey)
		if err != nil {
			return nil, err
		}
		return &keyPair{Type: keyTypeES256, PrivateKey: hex.EncodeToString(raw), PublicKey: hex.EncodeToString(pub)}, nil
	case keyTypeEd25519:
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &keyPair{
			Type:       keyTypeEd25519,
			PrivateKey: hex.EncodeToString(priv.Seed()),
			PublicKey:  hex.EncodeToString(pub),
		}, nil
	default:
		return nil, fmt.Errorf("unknown key type %q", typ)
	}
}

func signVCCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-vc",
		Usage: "build a credential for a holder and sign it with an EcdsaSecp256k1Signature2019 proof",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "issuer-key",
				Usage:    "hex secp256k1 private key of the issuer",
				EnvVars:  []string{"VCCTL_ISSUER_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "issuer-did",
				EnvVars:  []string{"VCCTL_ISSUER_DID"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "key-id",
				Value: "keys-1",
				Usage: "fragment of the issuer's verification method",
			},
			&cli.StringFlag{
				Name:     "holder-did",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "type",
				Value: "UniversityDegreeCredential",
				Usage: "credential type added after VerifiableCredential",
			},
			&cli.StringSliceFlag{
				Name:  "claim",
				Usage: "credentialSubject claim as name=value, repeatable",
			},
		},
		Action: func(c *cli.Context) error {
			priv, err := parseSecp256k1Key(c.String("issuer-key"))
			if err != nil {
				return err
			}
			claims, err := parseClaims(c.StringSlice("claim"))
			if err != nil {
				return err
			}
			signed, err := signCredential(credentialInput{
				IssuerDID: c.String("issuer-did"),
				KeyID:     c.String("key-id"),
				HolderDID: c.String("holder-did"),
				Type:      c.String("type"),
				Claims:    claims,
			}, priv, time.Now().UTC())
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, signed)
		},
	}
}

type credentialInput struct {
	IssuerDID string
	KeyID     string
	HolderDID string
	Type      string
	Claims    map[string]string
}

func signCredential(in credentialInput, priv *btcec.PrivateKey, now time.Time) (map[string]any, error) {
	created := now.Format(time.RFC3339)
	subject := map[string]any{"id": in.HolderDID}
	for k, v := range in.Claims {
		subject[k] = v
	}
	types := []any{"VerifiableCredential"}
	if in.Type != "" {
		types = append(types, in.Type)
	}
	credential := map[string]any{
		"@context":          []any{"https://www.w3.org/2018/credentials/v1"},
		"id":                "urn:uuid:" + uuid.NewString(),
		"type":              types,
		"issuer":            in.IssuerDID,
		"issuanceDate":      created,
		"credentialSubject": subject,
	}
	options := map[string]any{
		"type":               signature.ProofTypeSecp256k1Signature,
		"created":            created,
		"verificationMethod": in.IssuerDID + "#" + in.KeyID,
		"proofPurpose":       "assertionMethod",
	}
	return signature.SignLegacySecp256k1Proof(credential, options, priv)
}

func signTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-token",
		Usage: "mint a DID bearer token for calling the API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "alg",
				Value: string(signature.SuiteES256K),
				Usage: "ES256 | ES256K",
			},
			&cli.StringFlag{
				Name:     "key",
				Usage:    "hex private key matching the DID's active key",
				EnvVars:  []string{"VCCTL_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "did",
				EnvVars:  []string{"VCCTL_DID"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "kid",
				Usage: "optional key id header",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Value: 15 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			token, err := signToken(c.String("alg"), c.String("key"), c.String("did"), c.String("kid"),
				time.Now(), c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

func signToken(alg, keyHex, did, kid string, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}
	switch strings.ToUpper(alg) {
	case string(signature.SuiteES256K):
		priv, err := parseSecp256k1Key(keyHex)
		if err != nil {
			return "", err
		}
		return signature.SignToken(signature.SigningMethodES256K, priv, did, kid, now, ttl)
	case string(signature.SuiteES256):
		raw, err := decodeHex(keyHex)
		if err != nil {
			return "", err
		}
		priv, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
		if err != nil {
			return "", fmt.Errorf("parse p-256 key: %w", err)
		}
		return signature.SignToken(jwt.SigningMethodES256, priv, did, kid, now, ttl)
	default:
		return "", fmt.Errorf("unsupported alg %q", alg)
	}
}

func parseSecp256k1Key(s string) (*btcec.PrivateKey, error) {
	raw, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("secp256k1 key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), raw)
	return priv, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex key: %w", err)
	}
	return raw, nil
}

func parseClaims(pairs []string) (map[string]string, error) {
	claims := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("claim %q is not name=value", pair)
		}
		if name == "id" {
			return nil, errors.New("claim name id is reserved for the holder DID")
		}
		claims[name] = value
	}
	return claims, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
