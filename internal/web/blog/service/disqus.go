package service

import (
	"context"
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"

	"github.com/Laisky/agency-site/internal/web/blog/model"
	"github.com/Laisky/agency-site/library/db/docstore"
)

// DisqusExport root of a Disqus XML export
type DisqusExport struct {
	XMLName xml.Name       `xml:"disqus"`
	Threads []DisqusThread `xml:"thread"`
	Posts   []DisqusPost   `xml:"post"`
}

// DisqusThread one commented page, matched to a post by its link
type DisqusThread struct {
	DsqID     string `xml:"id,attr"`
	Link      string `xml:"link"`
	Title     string `xml:"title"`
	IsDeleted bool   `xml:"isDeleted"`
}

// DisqusPost one comment
type DisqusPost struct {
	DsqID     string       `xml:"id,attr"`
	Message   string       `xml:"message"`
	CreatedAt string       `xml:"createdAt"`
	IsDeleted bool         `xml:"isDeleted"`
	IsSpam    bool         `xml:"isSpam"`
	Author    DisqusAuthor `xml:"author"`
	Thread    DisqusRef    `xml:"thread"`
	Parent    *DisqusRef   `xml:"parent"`
}

// DisqusAuthor comment author, exports carry no email
type DisqusAuthor struct {
	Name        string `xml:"name"`
	Username    string `xml:"username"`
	IsAnonymous bool   `xml:"isAnonymous"`
}

// DisqusRef reference by Disqus id
type DisqusRef struct {
	DsqID string `xml:"id,attr"`
}

// ParseDisqus decode a Disqus XML export
func ParseDisqus(r io.Reader) (*DisqusExport, error) {
	export := new(DisqusExport)
	if err := xml.NewDecoder(r).Decode(export); err != nil {
		return nil, errors.Wrap(err, "decode disqus xml")
	}

	return export, nil
}

// ImportReport outcome of ImportDisqus
type ImportReport struct {
	Imported       int `json:"imported"`
	SkippedDeleted int `json:"skipped_deleted"`
	SkippedSpam    int `json:"skipped_spam"`
	SkippedNoPost  int `json:"skipped_no_post"`
	SkippedInvalid int `json:"skipped_invalid"`
}

// ImportDisqus import the comments of an export as approved comments.
//
// Threads are matched to posts by the last path segment of their link,
// which must equal the post slug. Replies keep their parent when the
// parent was imported too. Post counters are recomputed afterwards.
func (s *Blog) ImportDisqus(ctx context.Context, export *DisqusExport, dryRun bool) (*ImportReport, error) {
	logger := s.logger.Named("disqus")
	report := new(ImportReport)

	threadSlugs := make(map[string]string, len(export.Threads))
	for _, th := range export.Threads {
		if th.IsDeleted {
			continue
		}
		if slug := slugFromLink(th.Link); slug != "" {
			threadSlugs[th.DsqID] = slug
		}
	}

	postIDs := map[string]string{}
	resolve := func(slug string) (string, error) {
		if id, ok := postIDs[slug]; ok {
			return id, nil
		}

		post, err := s.dao.GetPostBySlug(ctx, slug)
		switch {
		case docstore.IsNotFound(err):
			postIDs[slug] = ""
			return "", nil
		case err != nil:
			return "", err
		}

		postIDs[slug] = post.ID
		return post.ID, nil
	}

	// assign ids first so replies can point at parents listed after them
	cmts := make(map[string]*model.Comment, len(export.Posts))
	order := make([]string, 0, len(export.Posts))
	for _, p := range export.Posts {
		switch {
		case p.IsDeleted:
			report.SkippedDeleted++
			continue
		case p.IsSpam:
			report.SkippedSpam++
			continue
		}

		slug, ok := threadSlugs[p.Thread.DsqID]
		if !ok {
			report.SkippedNoPost++
			continue
		}
		postID, err := resolve(slug)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve post `%s`", slug)
		}
		if postID == "" {
			logger.Debug("no post for thread", zap.String("slug", slug))
			report.SkippedNoPost++
			continue
		}

		content, err := sanitizeCommentText(disqusMessageText(p.Message))
		if err != nil {
			logger.Debug("skip invalid comment", zap.String("disqus_id", p.DsqID), zap.Error(err))
			report.SkippedInvalid++
			continue
		}

		name := strings.TrimSpace(p.Author.Name)
		if name == "" {
			name = "Anonymous"
		}
		if name, err = sanitizeRequiredText(name, maxCommentAuthorNameLen, "name"); err != nil {
			report.SkippedInvalid++
			continue
		}

		createdAt, err := parseDisqusTime(p.CreatedAt)
		if err != nil {
			logger.Warn("use import time for comment", zap.String("disqus_id", p.DsqID), zap.Error(err))
			createdAt = s.clock()
		}

		cmts[p.DsqID] = &model.Comment{
			ID:         gutils.UUID7(),
			PostID:     postID,
			Author:     model.CommentAuthor{Name: name},
			Content:    content,
			IsApproved: true,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}
		order = append(order, p.DsqID)
	}

	for _, p := range export.Posts {
		cmt, ok := cmts[p.DsqID]
		if !ok || p.Parent == nil {
			continue
		}
		// replies never cross posts
		if parent, ok := cmts[p.Parent.DsqID]; ok && parent.PostID == cmt.PostID {
			cmt.ParentID = &parent.ID
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return cmts[order[i]].CreatedAt.Before(cmts[order[j]].CreatedAt)
	})
	for _, dsqID := range order {
		if !dryRun {
			cmt := cmts[dsqID]
			if err := s.dao.DB().Create(ctx, model.CollComments, cmt.ID, cmt); err != nil {
				return nil, errors.Wrapf(err, "create comment for `%s`", dsqID)
			}
		}
		report.Imported++
	}

	if !dryRun && report.Imported > 0 {
		if _, err := s.Reindex(ctx); err != nil {
			return nil, errors.Wrap(err, "reindex after import")
		}
	}

	logger.Info("disqus import done",
		zap.Bool("dry_run", dryRun),
		zap.Int("imported", report.Imported),
		zap.Int("skipped_no_post", report.SkippedNoPost))
	return report, nil
}

// slugFromLink take the last path segment of a thread link
func slugFromLink(link string) string {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}

	base := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	if base == "." || base == "/" || base == "" {
		return ""
	}
	if slug, err := url.PathUnescape(base); err == nil {
		return slug
	}

	return base
}

func disqusMessageText(msg string) string {
	r := strings.NewReplacer("</p>", "\n", "<br>", "\n", "<br/>", "\n", "<br />", "\n")
	return strings.TrimSpace(r.Replace(msg))
}

func parseDisqusTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse("2006-01-02T15:04:05", s); err != nil {
			return time.Time{}, errors.Wrapf(err, "parse time `%s`", s)
		}
	}

	return t.UTC(), nil
}
