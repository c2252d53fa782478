package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginEmail  string
	signupName  string
	signupEmail string
	deleteYes   bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		email := loginEmail
		if email == "" {
			if email, err = readText(cmd.OutOrStdout(), "Email: "); err != nil {
				return err
			}
		}
		password, err := readSecret(cmd.OutOrStdout(), "Password: ")
		if err != nil {
			return err
		}
		u, err := a.auth.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", u.Name, u.Email)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		name, email := signupName, signupEmail
		if name == "" {
			if name, err = readText(out, "Name: "); err != nil {
				return err
			}
		}
		if email == "" {
			if email, err = readText(out, "Email: "); err != nil {
				return err
			}
		}
		password, err := readSecret(out, "Password: ")
		if err != nil {
			return err
		}
		confirm, err := readSecret(out, "Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		u, err := a.auth.Register(cmd.Context(), name, email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Account created for %s, now run: petcare-console login\n", u.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.auth.Logout()
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d)\n", u.Name, u.Email, u.ID)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Edit the profile",
}

var profileSetNameCmd = &cobra.Command{
	Use:   "set-name NAME",
	Short: "Change the display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.auth.UpdateProfile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Name changed to %s\n", u.Name)
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change the password; signs out on success",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		out := cmd.OutOrStdout()
		current, err := readSecret(out, "Current password: ")
		if err != nil {
			return err
		}
		next, err := readSecret(out, "New password: ")
		if err != nil {
			return err
		}
		confirm, err := readSecret(out, "Confirm new password: ")
		if err != nil {
			return err
		}
		if err := a.auth.ChangePassword(cmd.Context(), current, next, confirm); err != nil {
			return err
		}
		fmt.Fprintln(out, "Password changed, please sign in again")
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the account",
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the account after confirming the password",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		if !deleteYes {
			return fmt.Errorf("refusing to delete without --yes")
		}
		password, err := readSecret(cmd.OutOrStdout(), "Password: ")
		if err != nil {
			return err
		}
		if err := a.auth.VerifyPassword(cmd.Context(), password); err != nil {
			return err
		}
		if err := a.auth.DeleteAccount(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&signupName, "name", "", "Display name")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email")
	accountDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "Confirm deletion")

	profileCmd.AddCommand(profileSetNameCmd)
	passwordCmd.AddCommand(passwordChangeCmd)
	accountCmd.AddCommand(accountDeleteCmd)
}
