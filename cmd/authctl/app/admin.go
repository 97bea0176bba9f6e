package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const clientSecretBits = 256

func (c *cli) newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}
	cmd.AddCommand(c.newClientAddCmd())
	return cmd
}

func (c *cli) newClientAddCmd() *cobra.Command {
	var (
		client   clients.Client
		noSecret bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a client for one redirect uri",
		Long: `Register a client for one redirect uri. A secret is generated and printed once;
only its hash is stored. Use --no-secret for clients that authenticate by signature only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, e, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			var secret string
			if !noSecret {
				secret, client.ClientSecret, err = e.Passwords.CreateSecret(clientSecretBits)
				if err != nil {
					return err
				}
			}
			client.Enabled = true
			if err := stores.Clients.Upsert(cmd.Context(), &client); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "client_id:     %s\n", client.ClientID)
			_, _ = fmt.Fprintf(out, "redirect_uri:  %s\n", client.RedirectURI)
			if secret != "" {
				_, _ = fmt.Fprintf(out, "client_secret: %s\n", secret)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&client.ClientID, "client-id", "", "Client id")
	cmd.Flags().StringVar(&client.RedirectURI, "redirect-uri", "", "Redirect uri")
	cmd.Flags().StringVar(&client.Description, "description", "", "Description")
	cmd.Flags().StringVar(&client.PublicKey, "public-key", "", "Public key for signature authentication")
	cmd.Flags().StringSliceVar(&client.Scopes, "scope", nil, "Allowed scope, repeatable")
	cmd.Flags().BoolVar(&noSecret, "no-secret", false, "Do not generate a client secret")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("redirect-uri")
	return cmd
}

func (c *cli) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(c.newUserAddCmd())
	return cmd
}

func (c *cli) newUserAddCmd() *cobra.Command {
	var (
		user     users.User
		password string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := users.ValidatePasswordStrength(password); err != nil {
				return err
			}
			stores, e, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			if user.UserID == "" {
				user.UserID = uuid.NewString()
			}
			user.Password, err = e.Passwords.CreateHash(password)
			if err != nil {
				return err
			}
			user.Enabled = true
			user.DateJoined = time.Now().UTC()
			if err := stores.Users.Upsert(cmd.Context(), &user); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user_id: %s\n", user.UserID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user.UserID, "user-id", "", "User id, generated when empty")
	cmd.Flags().StringVar(&user.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&user.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&user.LastName, "last-name", "", "Last name")
	cmd.Flags().StringSliceVar(&user.Roles, "role", nil, "Role, repeatable")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage user API keys",
	}
	cmd.AddCommand(c.newAPIKeyAddCmd())
	return cmd
}

func (c *cli) newAPIKeyAddCmd() *cobra.Command {
	var key users.APIKey
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an API key for a user",
		Long: `Register an API key for a user. Without --public-key a key pair is generated and
the private key is printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, e, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			if _, err := stores.Users.Get(cmd.Context(), key.UserID); err != nil {
				return errors.Wrapf(err, "user %s", key.UserID)
			}

			var private string
			if key.APIKey == "" {
				private, key.APIKey, err = e.Signer.GenerateKeyPair()
				if err != nil {
					return err
				}
			}
			key.CreatedAt = time.Now().UTC()
			if err := stores.APIKeys.UpsertAPIKey(cmd.Context(), &key); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "user_id:     %s\n", key.UserID)
			_, _ = fmt.Fprintf(out, "name:        %s\n", key.Name)
			_, _ = fmt.Fprintf(out, "public_key:  %s\n", key.APIKey)
			if private != "" {
				_, _ = fmt.Fprintf(out, "private_key: %s\n", private)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key.UserID, "user-id", "", "User id")
	cmd.Flags().StringVar(&key.Name, "name", "", "Key name, unique per user")
	cmd.Flags().StringVar(&key.APIKey, "public-key", "", "Existing public key to register")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired codes and tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stores, e, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			n, err := e.Tokens.DeleteExpired(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired records\n", n)
			return nil
		},
	}
}
