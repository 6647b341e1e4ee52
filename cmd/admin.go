package cmd

import (
	"context"
	"fmt"

	"github.com/Laisky/errors/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/agency-site/internal/global"
	"github.com/Laisky/agency-site/internal/library/events"
	"github.com/Laisky/agency-site/internal/web/auth/dto"
	"github.com/Laisky/agency-site/internal/web/auth/model"
	"github.com/Laisky/agency-site/library/db/docstore"
	"github.com/Laisky/agency-site/library/log"
)

// cliActor is recorded in the activity log for console changes
var cliActor = events.Actor{ID: "cli", Name: "command line", Role: string(model.RoleAdmin)}

// adminActions maintenance operations shared by the admin commands and the tui
type adminActions struct {
	backends *global.Backends
	svcs     *global.Services
}

func openAdmin(ctx context.Context) (*adminActions, error) {
	backends, err := global.SetupDB(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setup db")
	}

	svcs, err := global.SetupServices(ctx, backends)
	if err != nil {
		backends.Close(ctx)
		return nil, errors.Wrap(err, "setup services")
	}

	return &adminActions{backends: backends, svcs: svcs}, nil
}

func (a *adminActions) Close(ctx context.Context) {
	a.backends.Close(ctx)
}

// CreateAdmin creates an enabled admin account
func (a *adminActions) CreateAdmin(ctx context.Context, email, name, password string) (string, error) {
	user, err := a.svcs.Auth.CreateUser(ctx, cliActor, &dto.UserInput{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return "", errors.Wrap(err, "create admin")
	}

	return fmt.Sprintf("created admin %s <%s> with id %s", user.Name, user.Email, user.ID), nil
}

// errMaintenanceBusy another process runs the same maintenance task
var errMaintenanceBusy = errors.New("maintenance task is running in another process")

// exclusive runs fn while holding the redis maintenance lock name.
// Without redis fn runs unguarded.
func (a *adminActions) exclusive(ctx context.Context, name string, fn func() (string, error)) (string, error) {
	if a.backends.Redis == nil {
		return fn()
	}

	ok, unlock, err := a.backends.Redis.TryLock(ctx, name)
	if err != nil {
		return "", errors.Wrap(err, "acquire maintenance lock")
	}
	if !ok {
		return "", errors.Wrap(errMaintenanceBusy, name)
	}
	defer unlock()

	return fn()
}

// Reindex recomputes the blog counters
func (a *adminActions) Reindex(ctx context.Context) (string, error) {
	return a.exclusive(ctx, "blog-maintenance", func() (string, error) {
		report, err := a.svcs.Blog.Reindex(ctx)
		if err != nil {
			return "", errors.Wrap(err, "reindex blog")
		}

		return fmt.Sprintf("fixed counters of %d posts, %d categories, %d tags",
			report.Posts, report.Categories, report.Tags), nil
	})
}

// CheckConfig validates the settings and reads from the store once
func (a *adminActions) CheckConfig(ctx context.Context) (string, error) {
	if err := validateStartupConfig(); err != nil {
		return "", err
	}

	n, err := a.backends.Store.Count(ctx, docstore.NewQuery(model.CollUsers))
	if err != nil {
		return "", errors.Wrap(err, "count users")
	}

	return fmt.Sprintf("configuration is valid, %d users, redis enabled: %t", n, a.backends.Redis != nil), nil
}

// runAdmin opens the backends, runs fn and logs its report
func runAdmin(fn func(ctx context.Context, a *adminActions) (string, error)) {
	ctx := context.Background()
	a, err := openAdmin(ctx)
	if err != nil {
		log.Logger.Panic("open admin", zap.Error(err))
	}
	defer a.Close(ctx)

	report, err := fn(ctx, a)
	if err != nil {
		log.Logger.Panic("admin command", zap.Error(err))
	}

	log.Logger.Info(report)
}

var adminCMD = &cobra.Command{
	Use:   "admin",
	Short: "admin",
	Long:  `maintenance commands of the agency site`,
	Args:  gcmd.NoExtraArgs,
}

var adminCreateCMD = &cobra.Command{
	Use:   "create",
	Short: "create an admin user",
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(context.Background(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		runAdmin(func(ctx context.Context, a *adminActions) (string, error) {
			return a.CreateAdmin(ctx, email, name, password)
		})
	},
}

var adminReindexCMD = &cobra.Command{
	Use:   "reindex",
	Short: "recompute blog counters",
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(context.Background(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		runAdmin(func(ctx context.Context, a *adminActions) (string, error) {
			return a.Reindex(ctx)
		})
	},
}

func init() {
	adminCreateCMD.Flags().String("email", "", "email of the admin")
	adminCreateCMD.Flags().String("name", "", "display name of the admin")
	adminCreateCMD.Flags().String("password", "", "login password, at least 8 characters")
	for _, flag := range []string{"email", "name", "password"} {
		_ = adminCreateCMD.MarkFlagRequired(flag)
	}

	adminCMD.AddCommand(adminCreateCMD, adminReindexCMD)
	rootCMD.AddCommand(adminCMD)
}
