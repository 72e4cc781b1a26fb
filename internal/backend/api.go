package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

func readerPath(resource, readerID string) string {
	return resource + "/" + url.PathEscape(readerID)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) GetProfile(ctx context.Context, readerID string) (*model.ReaderProfile, error) {
	var p model.ReaderProfile
	if err := c.getJSON(ctx, readerPath("profile", readerID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpsertProfile(ctx context.Context, profile model.ReaderProfile) (*model.ReaderProfile, error) {
	if profile.Concepts == nil {
		profile.Concepts = model.ConceptVector{}
	}
	var p model.ReaderProfile
	if err := c.sendJSON(ctx, http.MethodPost, "profile", profile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyTest sends a questionnaire concept vector and returns the updated profile
func (c *Client) ApplyTest(ctx context.Context, req model.ApplyTestRequest) (*model.ReaderProfile, error) {
	var p model.ReaderProfile
	if err := c.sendJSON(ctx, http.MethodPost, "apply_test", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) AnalyzeText(ctx context.Context, req model.AnalyzeTextRequest) (*model.AnalyzeTextResponse, error) {
	var out model.AnalyzeTextResponse
	if err := c.sendJSON(ctx, http.MethodPost, "analyze_text", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Gaps(ctx context.Context, readerID string) ([]model.GapSummaryItem, error) {
	var gaps []model.GapSummaryItem
	if err := c.getJSON(ctx, readerPath("gaps", readerID), &gaps); err != nil {
		return nil, err
	}
	return gaps, nil
}

func (c *Client) Recommendations(ctx context.Context, readerID string, topN int) ([]model.Work, error) {
	path := withQuery(readerPath("recommendations", readerID), url.Values{"top_n": {fmt.Sprint(topN)}})
	var works []model.Work
	if err := c.getJSON(ctx, path, &works); err != nil {
		return nil, err
	}
	return works, nil
}

// RecommendationsExplain prefers the backend's last saved snapshot
func (c *Client) RecommendationsExplain(ctx context.Context, readerID string, topN int) ([]model.ExplainedRecommendation, error) {
	path := withQuery(readerPath("recommendations_explain", readerID), url.Values{
		"top_n":     {fmt.Sprint(topN)},
		"use_saved": {"1"},
	})
	var recs []model.ExplainedRecommendation
	if err := c.getJSON(ctx, path, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *Client) ProfileMeta(ctx context.Context, readerID string) (*model.ProfileMeta, error) {
	var meta model.ProfileMeta
	if err := c.getJSON(ctx, readerPath("profile_meta", readerID), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) ProfileHistory(ctx context.Context, readerID string, limit int) ([]model.ProfileEvent, error) {
	path := withQuery(readerPath("profile_history", readerID), url.Values{"limit": {fmt.Sprint(limit)}})
	var events []model.ProfileEvent
	if err := c.getJSON(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) RecommendationsSaved(ctx context.Context, readerID string, limit int) ([]model.RecommendationSnapshot, error) {
	path := withQuery(readerPath("recommendations_saved", readerID), url.Values{"limit": {fmt.Sprint(limit)}})
	var snaps []model.RecommendationSnapshot
	if err := c.getJSON(ctx, path, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Admin endpoints are guarded by the backend using the identity header

func (c *Client) ListBooks(ctx context.Context) ([]model.Book, error) {
	var books []model.Book
	if err := c.getJSON(ctx, "admin/books", &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) AddBook(ctx context.Context, book model.Book) (*model.AdminResult, error) {
	var res model.AdminResult
	if err := c.sendJSON(ctx, http.MethodPost, "admin/books", book, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) RebuildWorks(ctx context.Context) (*model.AdminResult, error) {
	return c.adminAction(ctx, "admin/rebuild_works")
}

func (c *Client) ImportWorksNeo4j(ctx context.Context) (*model.AdminResult, error) {
	return c.adminAction(ctx, "admin/import_works_neo4j")
}

func (c *Client) Publish(ctx context.Context) (*model.AdminResult, error) {
	return c.adminAction(ctx, "admin/publish")
}

func (c *Client) adminAction(ctx context.Context, path string) (*model.AdminResult, error) {
	var res model.AdminResult
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
