package cmd

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dt-demo-gcp/authserver/config"
	"github.com/dt-demo-gcp/authserver/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for insertion into the users table",
	Long: `Reads a password from the terminal (or one line from stdin) and prints its
bcrypt hash hex-encoded, ready for decode('<hex>', 'hex') into users.hashed_password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cost := hashCost
		if cost == 0 {
			cost = config.LoadConfig().Auth.BcryptCost
		}

		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		encoded, err := hashPassword(services.NewBcryptHasher(cost), password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), encoded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
}

func hashPassword(hasher services.PasswordHasher, password string) (string, error) {
	hash, err := hasher.Hash(password)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hash), nil
}

// readPassword prompts without echo when stdin is a terminal and asks for
// confirmation; otherwise it reads a single line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
