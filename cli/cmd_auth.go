package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/albanobattistella/eOVPN/keyring"
)

func newAuthCmd() *cobra.Command {
	var (
		username string
		remove   bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Save the VPN username and password in the keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			if remove {
				if a.cfg.Username == "" {
					fmt.Fprintln(a.out, "No saved credentials.")
					return nil
				}
				if err := keyring.Delete(a.cfg.Username); err != nil {
					return err
				}
				a.cfg.Username = ""
				if err := a.cfg.Save(); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Credentials removed.")
				return nil
			}

			src := cmd.InOrStdin()
			in := bufio.NewReader(src)
			if username == "" {
				username, err = prompt(a.out, in, "Username: ")
				if err != nil {
					return err
				}
			}
			password, err := readPassword(a.out, src, in, "Password: ")
			if err != nil {
				return err
			}

			if err := keyring.Store(username, password); err != nil {
				return err
			}
			a.cfg.Username = username
			if err := a.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Credentials for %s saved.\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (prompted when empty)")
	cmd.Flags().BoolVar(&remove, "delete", false, "remove the saved credentials")
	return cmd
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo when src is a terminal and falls back
// to a plain line read from in otherwise.
func readPassword(out io.Writer, src io.Reader, in *bufio.Reader, label string) (string, error) {
	f, ok := src.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(out, in, label)
	}

	fmt.Fprint(out, label)
	pass, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}
