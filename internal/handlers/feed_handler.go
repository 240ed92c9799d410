package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
)

// syncWait bounds how long a feed request waits for the first live batches
const syncWait = 2 * time.Second

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	hub                 *session.Hub
	browser             *feed.Browser
	likeRepository      repositories.LikeRepository
	savedPostRepository repositories.SavedPostRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	hub *session.Hub,
	browser *feed.Browser,
	likeRepo repositories.LikeRepository,
	savedPostRepo repositories.SavedPostRepository,
) *FeedHandler {
	return &FeedHandler{
		hub:                 hub,
		browser:             browser,
		likeRepository:      likeRepo,
		savedPostRepository: savedPostRepo,
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.POST("/feed/more", h.LoadMore)
	g.POST("/feed/refresh", h.Refresh)
	g.GET("/feed/trending-tags", h.GetTrendingTags)
	g.GET("/explore", h.GetExplore)
	g.GET("/reels", h.GetReels)
}

// EnrichedPost is a post with viewer-specific flags
type EnrichedPost struct {
	models.Post
	IsLiked bool `json:"isLiked"`
	IsSaved bool `json:"isSaved"`
}

// enrichPosts looks up the viewer's like and save state for every post
func (h *FeedHandler) enrichPosts(ctx context.Context, viewerID string, posts []models.Post) ([]EnrichedPost, error) {
	out := make([]EnrichedPost, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range posts {
		out[i].Post = p
		g.Go(func() error {
			liked, err := h.likeRepository.IsLiked(gctx, viewerID, p.ID)
			if err != nil {
				return err
			}
			saved, err := h.savedPostRepository.IsSaved(gctx, viewerID, p.ID)
			if err != nil {
				return err
			}
			out[i].IsLiked, out[i].IsSaved = liked, saved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFeed returns the assembled home feed. The tab, q and tag query
// parameters select the view.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	var f feed.Filter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid feed filter")
	}
	f.Tab = feed.ParseTab(string(f.Tab))
	s.Feed.SetFilter(f)

	ctx := c.Request().Context()
	waitCtx, cancel := context.WithTimeout(ctx, syncWait)
	_ = s.Feed.WaitSynced(waitCtx)
	cancel()

	posts, err := h.enrichPosts(ctx, s.ViewerID, s.Feed.Posts())
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{
		"posts":   posts,
		"filter":  s.Feed.Filter(),
		"hasMore": s.Feed.HasMore(),
		"stale":   s.Feed.Stale(),
	})
}

// LoadMore fetches the next page of the feed
func (h *FeedHandler) LoadMore(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	added, err := s.Feed.LoadMore(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"added": added, "hasMore": s.Feed.HasMore()})
}

// Refresh restarts the feed from its first page
func (h *FeedHandler) Refresh(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	if err := s.Feed.Refresh(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"hasMore": s.Feed.HasMore(), "stale": s.Feed.Stale()})
}

// GetTrendingTags returns the most used tags across the loaded feed
func (h *FeedHandler) GetTrendingTags(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{"tags": s.Feed.TrendingTags(intParam(c, "n", 10, 50))})
}

// GetExplore lists trending visual posts, optionally for one category
func (h *FeedHandler) GetExplore(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	posts, err := h.browser.Explore(c.Request().Context(), v.ID, c.QueryParam("category"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"posts": posts, "categories": feed.Categories})
}

// GetReels lists the newest public reels
func (h *FeedHandler) GetReels(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	posts, err := h.browser.Reels(c.Request().Context(), v.ID)
	if err != nil {
		return toHTTPError(err)
	}
	enriched, err := h.enrichPosts(c.Request().Context(), v.ID, posts)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"posts": enriched})
}
