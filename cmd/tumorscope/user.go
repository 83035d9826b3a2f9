package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	internalauth "github.com/AV-Sohan-Aiyappa/TumourScope/internal/auth"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/config"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/models"
	"github.com/AV-Sohan-Aiyappa/TumourScope/internal/store"
)

func newUserCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local accounts",
	}
	cmd.AddCommand(newUserAddCmd(cfg, jsonOutput))
	cmd.AddCommand(newUserImportCmd(cfg, jsonOutput))
	return cmd
}

func newUserAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var passwordStdin bool
	var name string
	var specialization string
	var hospital string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create one local account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !passwordStdin {
				return fmt.Errorf("--password-stdin is required")
			}

			passwordBytes, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			password := strings.TrimSpace(string(passwordBytes))

			return withStore(cfg, func(ctx context.Context, st *store.Store) error {
				user, err := createUser(ctx, st, args[0], password, name, specialization, hospital)
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(user)
				}
				fmt.Printf("created user %s (%d)\n", user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read password from stdin")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&specialization, "specialization", "", "medical specialization")
	cmd.Flags().StringVar(&hospital, "hospital", "", "hospital affiliation")
	return cmd
}

// userImportEntry is one row of a YAML account manifest.
type userImportEntry struct {
	Email          string `yaml:"email"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	Specialization string `yaml:"specialization"`
	Hospital       string `yaml:"hospital"`
}

func newUserImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "import <manifest.yaml>",
		Short: "Bulk-create accounts from a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var entries []userImportEntry
			if err := yaml.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Errorf("manifest contains no accounts")
			}

			return withStore(cfg, func(ctx context.Context, st *store.Store) error {
				created := 0
				skipped := 0
				for i, entry := range entries {
					email, err := internalauth.NormalizeEmail(entry.Email)
					if err != nil {
						return fmt.Errorf("entry %d: %w", i+1, err)
					}

					existing, err := st.GetUserByEmail(ctx, email)
					if err != nil {
						return err
					}
					if existing != nil {
						if !skipExisting {
							return fmt.Errorf("entry %d: account %s already exists", i+1, email)
						}
						skipped++
						continue
					}

					if _, err := createUser(ctx, st, entry.Email, entry.Password, entry.Name, entry.Specialization, entry.Hospital); err != nil {
						return fmt.Errorf("entry %d: %w", i+1, err)
					}
					created++
				}

				if *jsonOutput {
					return writeJSON(map[string]int{"created": created, "skipped": skipped})
				}
				fmt.Printf("created %d account(s), skipped %d\n", created, skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip accounts that already exist")
	return cmd
}

func createUser(ctx context.Context, st *store.Store, email, password, name, specialization, hospital string) (*models.User, error) {
	normalized, err := internalauth.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := internalauth.ValidatePassword(password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}

	hash, err := internalauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	return st.CreateUser(ctx, &models.User{
		Email:          normalized,
		PasswordHash:   hash,
		Name:           strings.TrimSpace(name),
		Specialization: strings.TrimSpace(specialization),
		Hospital:       strings.TrimSpace(hospital),
	})
}

func withStore(cfg *config.Config, fn func(context.Context, *store.Store) error) error {
	if cfg == nil || cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), st)
}
