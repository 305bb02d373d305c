package spacetraveling

import (
	"context"
	"errors"
	"fmt"

	"github.com/eringen/spacetraveling/cms"
)

// BuildReport summarizes a Build run.
type BuildReport struct {
	Posts   int      // posts written to the snapshot
	Banners int      // banners downloaded and resized
	Skipped []string // UIDs listed by the backend that could not be loaded
}

// Build snapshots the backend into the Store: the pre-resolved post set with
// their banners, and the first listing page. Posts outside that set are
// resolved on first request.
func (a *App) Build(ctx context.Context) (BuildReport, error) {
	var report BuildReport
	if err := a.initCore(); err != nil {
		return report, err
	}

	resp, err := a.CMS.Query(ctx,
		[]cms.Predicate{cms.At("document.type", cms.PostType)},
		cms.QueryOptions{PageSize: a.Config.StaticPathsPageSize},
	)
	if err != nil {
		return report, fmt.Errorf("spacetraveling: build: list posts: %w", err)
	}

	for _, listed := range resp.Results {
		if listed.UID == "" {
			continue
		}
		doc, err := a.CMS.GetByUID(ctx, cms.PostType, listed.UID)
		if errors.Is(err, cms.ErrNotFound) {
			a.Echo.Logger.Warnf("build: post %q disappeared", listed.UID)
			report.Skipped = append(report.Skipped, listed.UID)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("spacetraveling: build: post %q: %w", listed.UID, err)
		}
		if err := a.Store.SaveDocument(doc); err != nil {
			return report, fmt.Errorf("spacetraveling: build: save %q: %w", doc.UID, err)
		}
		report.Posts++

		post, err := cms.DecodePostDetail(doc)
		if err != nil {
			a.Echo.Logger.Warnf("build: post %q: %v", doc.UID, err)
			continue
		}
		if post.BannerURL == "" {
			continue
		}
		publicPath, err := a.saveBanner(ctx, doc.UID, post.BannerURL)
		if err != nil {
			a.Echo.Logger.Warnf("build: banner of %q: %v", doc.UID, err)
			continue
		}
		if err := a.Store.SetBannerPath(doc.UID, publicPath); err != nil {
			return report, fmt.Errorf("spacetraveling: build: banner path %q: %w", doc.UID, err)
		}
		report.Banners++
	}

	page, err := a.Cache.fetchFirstPage(ctx)
	if err != nil {
		return report, fmt.Errorf("spacetraveling: build: listing: %w", err)
	}
	if err := a.Store.SaveListing(page); err != nil {
		return report, fmt.Errorf("spacetraveling: build: save listing: %w", err)
	}
	return report, nil
}
