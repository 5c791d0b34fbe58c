package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxpoll/internal/credential"
)

func newCredentialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets stored in the system keyring",
		Long: `Store, check or remove secrets in the system keyring.

Known keys: ` + strings.Join(credential.Keys, ", ") + `

A secret in the keyring is used when the matching setting (imap.password,
openai.api_key) is not given in the environment or config file.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret read from standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := credential.ValidateKey(key); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Enter value for %s: ", key)
			value, err := readSecretLine(cmd)
			if err != nil {
				return err
			}

			store, err := a.secretStore()
			if err != nil {
				return err
			}
			if err := store.Set(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", key)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which secrets are stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.secretStore()
			if err != nil {
				return err
			}
			for _, key := range credential.Keys {
				state := "set"
				if _, err := store.Get(key); errors.Is(err, credential.ErrNotFound) {
					state = "not set"
				} else if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, state)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := credential.ValidateKey(key); err != nil {
				return err
			}
			store, err := a.secretStore()
			if err != nil {
				return err
			}
			if err := store.Delete(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
			return nil
		},
	})

	return cmd
}

func readSecretLine(cmd *cobra.Command) (string, error) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return "", errors.New("no value given")
	}
	value := strings.TrimSpace(scanner.Text())
	if value == "" {
		return "", errors.New("value must not be empty")
	}
	return value, nil
}
