package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/domain"
)

// passwordEnv keeps the initial password out of shell history.
const passwordEnv = "CAMPUS_ADMIN_PASSWORD"

var (
	createUserCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
		Use:   "create-user",
		Short: "Create an account (super-admin by default)",
		Args:  cobra.NoArgs,
		RunE:  cmdCreateUser,
	}

	addMemberCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
		Use:   "add-member",
		Short: "Grant a user a teacher or student membership in an institute",
		Args:  cobra.NoArgs,
		RunE:  cmdAddMember,
	}

	createUserFlags struct { //nolint:gochecknoglobals // bound flags
		email string
		name  string
		role  string
	}

	addMemberFlags struct { //nolint:gochecknoglobals // bound flags
		user      string
		institute string
		role      string
	}
)

func init() { //nolint:gochecknoinits // flag binding
	f := createUserCmd.Flags()
	f.StringVar(&createUserFlags.email, "email", "", "account email")
	f.StringVar(&createUserFlags.name, "name", "Administrator", "display name")
	f.StringVar(&createUserFlags.role, "role", string(domain.RoleSuperAdmin), "account role")
	_ = createUserCmd.MarkFlagRequired("email")

	f = addMemberCmd.Flags()
	f.StringVar(&addMemberFlags.user, "user", "", "user id")
	f.StringVar(&addMemberFlags.institute, "institute", "", "institute id")
	f.StringVar(&addMemberFlags.role, "role", string(domain.MembershipTeacher), "membership role: teacher or student")
	_ = addMemberCmd.MarkFlagRequired("user")
	_ = addMemberCmd.MarkFlagRequired("institute")
}

func cmdCreateUser(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	password := os.Getenv(passwordEnv)
	if len(password) < 12 {
		return fmt.Errorf("create-user: %s must hold a password of at least 12 characters", passwordEnv)
	}

	cfg, err := setup()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Account creation never touches revoked tokens.
	svc := auth.NewService(store.Users(), nil, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	u, err := svc.CreateUser(ctx, createUserFlags.email, password, createUserFlags.name, domain.Role(createUserFlags.role))
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("create-user: %s already exists", createUserFlags.email)
	}
	if err != nil {
		return err
	}

	log.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user created")
	return nil
}

func cmdAddMember(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, err := uuid.Parse(addMemberFlags.user)
	if err != nil {
		return errors.New("add-member: --user must be a UUID")
	}
	tenantID, err := uuid.Parse(addMemberFlags.institute)
	if err != nil {
		return errors.New("add-member: --institute must be a UUID")
	}
	role := domain.MembershipRole(addMemberFlags.role)
	if role != domain.MembershipTeacher && role != domain.MembershipStudent {
		return errors.New("add-member: --role must be teacher or student")
	}

	cfg, err := setup()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.Tenants().GetByID(ctx, tenantID); err != nil {
		return fmt.Errorf("add-member: institute: %w", err)
	}
	if err := store.Users().AddMembership(ctx, userID, tenantID, role); err != nil {
		return err
	}

	log.Info().Str("user_id", userID.String()).Str("institute_id", tenantID.String()).Str("role", string(role)).Msg("membership granted")
	return nil
}
