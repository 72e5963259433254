package commands

import (
	"fmt"
	"io"

	"github.com/fivetwenty-io/rentals-client/internal/constants"
	"github.com/fivetwenty-io/rentals-client/pkg/rentals"
	"github.com/spf13/cobra"
)

// NewProfileCommand creates the profile command group.
func NewProfileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"me"},
		Short:   "Show or update your profile",
	}

	cmd.AddCommand(newProfileShowCommand())
	cmd.AddCommand(newProfileUpdateCommand())

	return cmd
}

func displayUser(w io.Writer, user *rentals.User) error {
	table := newTable(w, "Property", "Value")
	_ = table.Append("ID", user.ID)
	_ = table.Append("Name", valueOrNA(user.Name))
	_ = table.Append("Email", user.Email)
	_ = table.Append("Phone", valueOrNA(user.Phone))
	_ = table.Append("Member since", formatDate(user.CreatedAt))

	return renderTable(table)
}

func newProfileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				user, err := client.Auth().Profile(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to get profile: %w", err)
				}

				return render(cmd, user, displayUser)
			})
		}),
	}
}

func newProfileUpdateCommand() *cobra.Command {
	var name, phone, avatar string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			request := &rentals.ProfileUpdateRequest{}

			if cmd.Flags().Changed("name") {
				request.Name = &name
			}

			if cmd.Flags().Changed("phone") {
				request.Phone = &phone
			}

			if cmd.Flags().Changed("avatar-url") {
				request.AvatarURL = &avatar
			}

			if request.Name == nil && request.Phone == nil && request.AvatarURL == nil {
				return constants.ErrNothingToUpdate
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				user, err := client.Auth().UpdateProfile(cmd.Context(), request)
				if err != nil {
					return fmt.Errorf("failed to update profile: %w", err)
				}

				return render(cmd, user, displayUser)
			})
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&avatar, "avatar-url", "", "avatar image URL")

	return cmd
}

// NewPasswordCommand creates the password command group.
func NewPasswordCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change or reset your password",
	}

	cmd.AddCommand(newPasswordChangeCommand())
	cmd.AddCommand(newPasswordForgotCommand())
	cmd.AddCommand(newPasswordResetCommand())

	return cmd
}

// askNewPassword prompts twice for a new password unless it was given.
func askNewPassword(p *prompter, password *string) error {
	if *password != "" {
		return nil
	}

	first, err := p.secret("New password")
	if err != nil {
		return err
	}

	second, err := p.secret("Repeat new password")
	if err != nil {
		return err
	}

	if first != second {
		return constants.ErrPasswordMismatch
	}

	if first == "" {
		return constants.ErrEmptyPassword
	}

	*password = first

	return nil
}

func newPasswordChangeCommand() *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "change",
		Short: "Change the password of the signed-in account",
		RunE: requireAuth(func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)

			err := p.askIfEmpty(&current, "Current password", true)
			if err != nil {
				return err
			}

			err = askNewPassword(p, &next)
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				err := client.Auth().ChangePassword(cmd.Context(), &rentals.ChangePasswordRequest{
					CurrentPassword: current,
					NewPassword:     next,
				})
				if err != nil {
					return fmt.Errorf("failed to change password: %w", err)
				}

				printMessage(cmd, "Password changed")

				return nil
			})
		}),
	}

	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")

	return cmd
}

func newPasswordForgotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forgot EMAIL",
		Short: "Request a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(client rentals.Client) error {
				message, err := client.Auth().ForgotPassword(cmd.Context(), &rentals.ForgotPasswordRequest{Email: args[0]})
				if err != nil {
					return fmt.Errorf("failed to request password reset: %w", err)
				}

				printMessage(cmd, "%s", valueOrNA(message))

				return nil
			})
		},
	}
}

func newPasswordResetCommand() *cobra.Command {
	var next string

	cmd := &cobra.Command{
		Use:   "reset TOKEN",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := askNewPassword(newPrompter(cmd), &next)
			if err != nil {
				return err
			}

			return withSession(cmd.Context(), func(client rentals.Client) error {
				message, err := client.Auth().ResetPassword(cmd.Context(), &rentals.ResetPasswordRequest{
					Token:       args[0],
					NewPassword: next,
				})
				if err != nil {
					return fmt.Errorf("failed to reset password: %w", err)
				}

				printMessage(cmd, "%s", valueOrNA(message))

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")

	return cmd
}
