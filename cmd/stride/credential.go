package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tessadoran/stride/internal/app"
	"github.com/tessadoran/stride/internal/config"
	"github.com/tessadoran/stride/internal/record"
	"github.com/tessadoran/stride/internal/ui"
)

var credentialCmd = &cobra.Command{
	Use:     "credential",
	GroupID: "data",
	Short:   "Manage stored credentials",
}

var credentialAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Store a credential",
	Long: `Store a credential for a service. The secret is read from the
terminal without echo.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.Join(args, " ")
		service, _ := cmd.Flags().GetString("service")
		username, _ := cmd.Flags().GetString("username")
		if service == "" {
			return fmt.Errorf("--service is required")
		}

		secret, err := readSecret("Secret: ")
		if err != nil {
			return err
		}

		return withApp(func(cfg *config.Config, a *app.App) error {
			cred, err := a.CreateCredential(cmd.Context(), &record.Credential{
				Label:    label,
				Service:  service,
				Username: username,
				Secret:   secret,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s Stored credential %s\n", ui.RenderPass("✓"), ui.RenderFaint(shortID(cred.Meta().ID)))
			return nil
		})
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials (secrets are never printed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(cfg *config.Config, a *app.App) error {
			recs, err := a.List(cmd.Context(), record.TableCredentials)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No stored credentials.")
				return nil
			}
			for _, r := range recs {
				c := r.(*record.Credential)
				line := fmt.Sprintf("%s  %s", ui.RenderFaint(shortID(c.Meta().ID)), c.Label)
				if c.Service != "" {
					line += ui.RenderFaint("  (" + c.Service + ")")
				}
				fmt.Println(line)
			}
			return nil
		})
	},
}

// readSecret reads a secret without echo when stdin is a terminal, and
// falls back to a plain line read otherwise (pipes, tests).
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	credentialAddCmd.Flags().String("service", "", "Service the credential belongs to")
	credentialAddCmd.Flags().String("username", "", "Username or account")

	credentialCmd.AddCommand(credentialAddCmd, credentialListCmd)
	rootCmd.AddCommand(credentialCmd)
}
