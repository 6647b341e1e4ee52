package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	blogSvc "github.com/Laisky/agency-site/internal/web/blog/service"
	"github.com/Laisky/agency-site/library/log"
)

// ImportDisqus imports the comments of a Disqus XML export
func (a *adminActions) ImportDisqus(ctx context.Context, file string, dryRun bool) (string, error) {
	fp, err := os.Open(file)
	if err != nil {
		return "", errors.Wrapf(err, "open `%s`", file)
	}
	defer fp.Close() //nolint:errcheck

	export, err := blogSvc.ParseDisqus(fp)
	if err != nil {
		return "", err
	}

	if dryRun {
		return a.importDisqus(ctx, export, true)
	}

	return a.exclusive(ctx, "blog-maintenance", func() (string, error) {
		return a.importDisqus(ctx, export, false)
	})
}

func (a *adminActions) importDisqus(ctx context.Context, export *blogSvc.DisqusExport, dryRun bool) (string, error) {
	report, err := a.svcs.Blog.ImportDisqus(ctx, export, dryRun)
	if err != nil {
		return "", errors.Wrap(err, "import disqus comments")
	}

	return fmt.Sprintf("imported %d comments (dry run: %t), skipped %d deleted, %d spam, %d without post, %d invalid",
		report.Imported, dryRun, report.SkippedDeleted, report.SkippedSpam,
		report.SkippedNoPost, report.SkippedInvalid), nil
}

var adminImportCMD = &cobra.Command{
	Use:   "import-comments",
	Short: "import comments from a Disqus export",
	Long: `Import comments from a Disqus XML export into the blog.

Threads are matched to posts by the last path segment of their link,
which must be the post slug. Imported comments are approved. Use --dry
to only report what would be imported.

  agency-site admin import-comments -c settings.yml --disqus-file=export.xml`,
	Args: gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(context.Background(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("disqus-file")
		runAdmin(func(ctx context.Context, a *adminActions) (string, error) {
			return a.ImportDisqus(ctx, file, gconfig.Shared.GetBool("dry"))
		})
	},
}

func init() {
	adminImportCMD.Flags().String("disqus-file", "", "path to the Disqus XML export")
	_ = adminImportCMD.MarkFlagRequired("disqus-file")
	adminCMD.AddCommand(adminImportCMD)
}
