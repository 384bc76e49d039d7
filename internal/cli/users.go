package cli

import (
	"errors"
	"fmt"
	"strings"

	"renthaus/internal/auth"
	"renthaus/internal/domain"
	"renthaus/internal/models"

	"github.com/spf13/cobra"
)

type TokenOptions struct {
	*RootOptions
	UID   string
	Email string
}

// NewTokenCommand mints a bearer token for the jwt auth provider.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token for a user (jwt auth provider only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			authCfg := env.Config.API.Auth
			if authCfg.Provider != "jwt" {
				return fmt.Errorf("auth provider is %q; tokens can only be minted for jwt", authCfg.Provider)
			}
			if _, err := env.Store.GetUser(cmd.Context(), opts.UID); err != nil {
				return err
			}

			tokens := auth.NewTokenManager(authCfg.JWTSecret, authCfg.JWTIssuer, authCfg.TokenTTL)
			token, err := tokens.Generate(opts.UID, opts.Email)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]string{"token": token})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.UID, "uid", "", "user uid (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email claim")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

type UserRoleOptions struct {
	*RootOptions
	Email string
}

func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserRoleCommand(rootOpts))
	return cmd
}

func newUserRoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserRoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "role <uid> <customer|vendor|admin>",
		Short: "Set a user's role, creating the user when --email is given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			uid, role := args[0], strings.ToLower(args[1])
			switch role {
			case models.RoleCustomer, models.RoleVendor, models.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", args[1])
			}

			user, err := env.Store.GetUser(cmd.Context(), uid)
			switch {
			case errors.Is(err, domain.ErrNotFound) && opts.Email != "":
				user = &models.User{UID: uid, Email: opts.Email}
			case err != nil:
				return err
			}
			user.Role = role
			if role == models.RoleVendor && user.RegistrationStatus == "" {
				user.RegistrationStatus = models.RegistrationPending
			}
			if err := env.Store.UpsertUser(cmd.Context(), user); err != nil {
				return err
			}

			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", uid, role)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "email for a new user")
	return cmd
}

type VendorApprovalOptions struct {
	*RootOptions
	Reject     bool
	AllPending bool
}

func NewVendorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VendorApprovalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Manage vendor registrations",
	}
	approve := &cobra.Command{
		Use:   "approve [uid]",
		Short: "Approve a vendor, reject with --reject, or approve every pending vendor with --all-pending",
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.AllPending {
				if len(args) > 0 {
					return errors.New("--all-pending takes no uid")
				}
				if opts.Reject {
					return errors.New("--all-pending cannot be combined with --reject")
				}
				return nil
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.environment()
			if err != nil {
				return err
			}
			if opts.AllPending {
				return approvePending(cmd, opts, env)
			}

			status := models.RegistrationApproved
			if opts.Reject {
				status = models.RegistrationRejected
			}
			if err := env.Store.SetVendorApproval(cmd.Context(), args[0], status, !opts.Reject); err != nil {
				return err
			}
			if opts.jsonOutput() {
				return opts.printJSON(cmd.OutOrStdout(), map[string]string{"uid": args[0], "registrationStatus": status})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vendor %s %s\n", args[0], status)
			return nil
		},
	}
	approve.Flags().BoolVar(&opts.Reject, "reject", false, "reject instead of approve")
	approve.Flags().BoolVar(&opts.AllPending, "all-pending", false, "approve every vendor awaiting review")
	cmd.AddCommand(approve)
	return cmd
}

func approvePending(cmd *cobra.Command, opts *VendorApprovalOptions, env *Env) error {
	pending, err := env.Store.ListVendors(cmd.Context(), models.RegistrationPending)
	if err != nil {
		return err
	}
	uids := make([]string, 0, len(pending))
	for _, v := range pending {
		if err := env.Store.SetVendorApproval(cmd.Context(), v.UID, models.RegistrationApproved, true); err != nil {
			return fmt.Errorf("approve vendor %s: %w", v.UID, err)
		}
		uids = append(uids, v.UID)
	}

	if opts.jsonOutput() {
		return opts.printJSON(cmd.OutOrStdout(), map[string]any{"approved": len(uids), "uids": uids})
	}
	for _, uid := range uids {
		fmt.Fprintf(cmd.OutOrStdout(), "vendor %s %s\n", uid, models.RegistrationApproved)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "approved %d pending vendors\n", len(uids))
	return nil
}
