/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cvdreamjob/apiserver/internal/client/profileapi"
	"github.com/cvdreamjob/apiserver/internal/client/profileform"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit your profile from the terminal",
	Long: `Talks to a running cvdream server as the signed-in user. Usage:

	cvdream profile show --token <jwt>
	cvdream profile update --name "Alice B" --password
	cvdream profile delete
`,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := newProfileForm(cmd)
		if err != nil {
			return err
		}
		if err := form.Load(cmd.Context()); err != nil {
			return err
		}
		printView(cmd.OutOrStdout(), form.View())
		return nil
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update your name, avatar or password",
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := newProfileForm(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := form.Load(ctx); err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("name") {
			name, _ := flags.GetString("name")
			form.SetName(name)
		}
		if flags.Changed("image") {
			image, _ := flags.GetString("image")
			if image == "" {
				form.SetImage(nil)
			} else {
				form.SetImage(&image)
			}
		}
		if path, _ := flags.GetString("avatar"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read avatar: %w", err)
			}
			form.SelectAvatar(filepath.Base(path), data)
		}
		if prompt, _ := flags.GetBool("password"); prompt {
			password, err := readNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			form.SetPassword(password)
		}

		if err := form.Submit(ctx); err != nil {
			return err
		}
		printView(cmd.OutOrStdout(), form.View())
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Irreversibly delete your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := newProfileForm(cmd)
		if err != nil {
			return err
		}
		err = form.Delete(cmd.Context())
		if errors.Is(err, profileform.ErrDeclined) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profileDeleteCmd)

	profileCmd.PersistentFlags().String("url", envOr("CVDREAM_URL", "http://localhost:8080"), "server base URL")
	profileCmd.PersistentFlags().String("token", os.Getenv("CVDREAM_TOKEN"), "bearer session token")
	profileCmd.PersistentFlags().String("cookie", os.Getenv("CVDREAM_SESSION_COOKIE"), "session cookie value")

	profileUpdateCmd.Flags().String("name", "", "new display name")
	profileUpdateCmd.Flags().String("image", "", "image URL; empty clears it")
	profileUpdateCmd.Flags().String("avatar", "", "path of an image file to upload as avatar")
	profileUpdateCmd.Flags().Bool("password", false, "prompt for a new password")

	profileDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

func newProfileForm(cmd *cobra.Command) (*profileform.Controller, error) {
	flags := cmd.Flags()
	baseURL, _ := flags.GetString("url")
	token, _ := flags.GetString("token")
	cookie, _ := flags.GetString("cookie")
	if token == "" && cookie == "" {
		return nil, errors.New("--token or --cookie is required")
	}

	var opts []profileapi.Option
	if token != "" {
		opts = append(opts, profileapi.WithBearerToken(token))
	}
	if cookie != "" {
		opts = append(opts, profileapi.WithSessionCookie(cookie))
	}
	client := profileapi.New(baseURL, opts...)

	var confirmer profileform.Confirmer = lineConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr()}
	if yes, err := flags.GetBool("yes"); err == nil && yes {
		confirmer = alwaysConfirm{}
	}

	return profileform.New(client,
		profileform.WithAvatarUploader(client),
		profileform.WithNotifier(termNotifier{out: cmd.ErrOrStderr()}),
		profileform.WithConfirmer(confirmer),
		profileform.WithNavigator(signOut{out: cmd.OutOrStdout()}),
	), nil
}

func printView(w io.Writer, v profileform.View) {
	fmt.Fprintf(w, "Name:   %s\n", v.Name)
	fmt.Fprintf(w, "Email:  %s\n", v.Email)
	image := v.DisplayImage
	if strings.HasPrefix(image, "data:") {
		image = "(inline image)"
	}
	fmt.Fprintf(w, "Avatar: %s\n", image)
}

func readNewPassword(out io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--password needs an interactive terminal")
	}
	fmt.Fprint(out, "New password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

type termNotifier struct{ out io.Writer }

func (n termNotifier) Notify(notice profileform.Notice) {
	if notice.Level == profileform.LevelError && notice.Kind != "" {
		fmt.Fprintf(n.out, "%s (%s)\n", notice.Message, notice.Kind)
		return
	}
	fmt.Fprintln(n.out, notice.Message)
}

// lineConfirmer accepts "y" or "yes" on its own line.
type lineConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (c lineConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

type alwaysConfirm struct{}

func (alwaysConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

type signOut struct{ out io.Writer }

func (s signOut) NavigateAway(context.Context) {
	fmt.Fprintln(s.out, "Signed out.")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
