package app

import (
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/digest"
	"github.com/jrsteele09/go-auth-engine/hashing"
	"github.com/jrsteele09/go-auth-engine/signing"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	algorithmBcrypt = "bcrypt"
	nonceBits       = 128
)

var errHashMismatch = errors.New("text does not match hash")

func (c *cli) newHashCmd() *cobra.Command {
	var (
		algorithm string
		verify    string
	)
	cmd := &cobra.Command{
		Use:   "hash <text>",
		Short: "Hash a password or secret, or verify one against a stored hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := c.hasher(algorithm)
			if err != nil {
				return err
			}
			if verify != "" {
				if !provider.ValidateHash(args[0], verify) {
					return errHashMismatch
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}
			hash, err := provider.CreateHash(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", hashing.AlgorithmPBKDF2,
		"Hash algorithm: pbkdf2-sha256, blake3 or bcrypt")
	cmd.Flags().StringVar(&verify, "verify", "", "Stored hash to verify the text against")
	return cmd
}

func (c *cli) hasher(algorithm string) (hashing.Provider, error) {
	cfg := c.config()
	switch algorithm {
	case algorithmBcrypt:
		return hashing.NewBcrypt(0)
	case hashing.AlgorithmPBKDF2:
		return hashing.NewPBKDF2(
			hashing.WithIterations(cfg.GetPasswordHashIterations()),
			hashing.WithSeparator(cfg.GetHashSeparator()),
		)
	default:
		return hashing.New(algorithm, hashing.WithSeparator(cfg.GetHashSeparator()))
	}
}

func (c *cli) signer() (*signing.Signer, error) {
	return signing.New(signing.Algorithm(c.config().GetSignatureAlgorithm()))
}

func (c *cli) newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair for signature authentication",
		Long: `Generate a key pair for the configured signature algorithm. The public key is
registered on a client or as a user API key; the private key stays with the caller.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := c.signer()
			if err != nil {
				return err
			}
			private, public, err := signer.GenerateKeyPair()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "algorithm:   %s\n", signer.Algorithm())
			_, _ = fmt.Fprintf(out, "private_key: %s\n", private)
			_, _ = fmt.Fprintf(out, "public_key:  %s\n", public)
			return nil
		},
	}
}

func (c *cli) newSignCmd() *cobra.Command {
	var d digest.Signature
	var privateKey string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Produce a Signature authorization header for a request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			signer, err := c.signer()
			if err != nil {
				return err
			}
			nonce, err := hashing.GenerateSecret(nonceBits, hashing.DefaultCharset)
			if err != nil {
				return err
			}
			d.Timestamp = time.Now().Unix()
			d.Nonce = nonce
			signed, err := d.Sign(signer, privateKey)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&d.ClientID, "client-id", "", "Client id")
	cmd.Flags().StringVar(&d.UserID, "user-id", "", "User id, for user signature authentication")
	cmd.Flags().StringVar(&d.RedirectURI, "redirect-uri", "", "Redirect uri")
	cmd.Flags().StringVar(&d.RequestURL, "request-url", "", "URL of the request being signed")
	cmd.Flags().StringVar(&privateKey, "private-key", "", "Private key from keygen")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("private-key")
	return cmd
}
