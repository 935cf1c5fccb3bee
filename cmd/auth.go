package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/studydeck-cli/internal/backend"
	"github.com/spf13/cobra"
)

var (
	authName     string
	authEmail    string
	authPassword string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		password, err := passwordInput()
		if err != nil {
			return err
		}
		db, err := openBackend(c)
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := db.SignUp(cmdContext(cmd), authName, authEmail, password)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Account created for %s\n", user.Email)
		fmt.Println("Run 'studydeck login' to sign in.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session on this machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		password, err := passwordInput()
		if err != nil {
			return err
		}
		db, err := openBackend(c)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmdContext(cmd)
		if rec, err := readSessionRecord(c); err == nil {
			_ = db.SignOut(ctx, rec.Token)
		}
		sess, err := db.SignIn(ctx, authEmail, password)
		if err != nil {
			return err
		}
		if err := writeSessionRecord(c, sessionRecord{Token: sess.Token, Email: sess.User.Email, SavedAt: time.Now()}); err != nil {
			return err
		}
		fmt.Printf("✓ Signed in as %s\n", sess.User.Name)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		rec, err := readSessionRecord(c)
		if errors.Is(err, errNotSignedIn) {
			fmt.Println("Not signed in")
			return nil
		}
		if err != nil {
			return err
		}
		db, err := openBackend(c)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SignOut(cmdContext(cmd), rec.Token); err != nil {
			return err
		}
		if err := clearSessionRecord(c); err != nil {
			return err
		}
		fmt.Println("✓ Signed out")
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session) error {
			id := s.store.Identity()
			profile, err := s.db.Profile(ctx, id.ID)
			if err != nil && !errors.Is(err, backend.ErrNotFound) {
				return err
			}
			fmt.Printf("Name:    %s\n", id.Name)
			fmt.Printf("Email:   %s\n", id.Email)
			if profile != nil {
				fmt.Printf("Member since: %s\n", profile.CreatedAt.Format("2006-01-02"))
			}
			st := s.store.Stats()
			fmt.Printf("Documents: %d  Flashcards: %d  Notes: %d  Questions: %d\n",
				st.DocumentsUploaded, st.FlashcardsCreated, st.NotesCreated, st.QuestionsAsked)
			return nil
		})
	},
}

// passwordInput takes --password, or reads one line from stdin when the
// flag is unset.
func passwordInput() (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, accountCmd)

	signupCmd.Flags().StringVar(&authName, "name", "", "display name")
	signupCmd.Flags().StringVar(&authEmail, "email", "", "email address")
	signupCmd.Flags().StringVar(&authPassword, "password", "", "password (prompted when omitted)")
	_ = signupCmd.MarkFlagRequired("name")
	_ = signupCmd.MarkFlagRequired("email")

	loginCmd.Flags().StringVar(&authEmail, "email", "", "email address")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "password (prompted when omitted)")
	_ = loginCmd.MarkFlagRequired("email")
}
