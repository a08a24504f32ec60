package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

type fakeSource struct {
	candidates []domain.CandidateRef
	err        error
}

func (f *fakeSource) Discover(context.Context, domain.Source) ([]domain.CandidateRef, error) {
	return f.candidates, f.err
}

type fakeExtractor struct {
	mu       sync.Mutex
	articles map[string]*domain.Article
	errs     map[string]error
	calls    []string
}

func (f *fakeExtractor) Extract(_ context.Context, _, articleURL string) (*domain.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, articleURL)
	if err := f.errs[articleURL]; err != nil {
		return nil, err
	}
	if a, ok := f.articles[articleURL]; ok {
		cp := *a
		return &cp, nil
	}
	return &domain.Article{
		Title:     "Title of " + articleURL,
		BodyHTML:  "<p>A body that is long enough to be a plausible article text.</p>",
		SourceURL: articleURL,
	}, nil
}

type fakeRewriter struct {
	result domain.RewriteResult
	err    error
	got    []ports.RewriteRequest
}

func (f *fakeRewriter) Rewrite(_ context.Context, req ports.RewriteRequest) (domain.RewriteResult, error) {
	f.got = append(f.got, req)
	return f.result, f.err
}

type fakeImages struct {
	mediaID int
	err     error
	urls    []string
}

func (f *fakeImages) Acquire(_ context.Context, _ ports.MediaStore, imageURL, _, _ string) (int, error) {
	f.urls = append(f.urls, imageURL)
	if f.err != nil {
		return 0, f.err
	}
	return f.mediaID, nil
}

type fakeCMS struct {
	mu          sync.Mutex
	nextID      int
	posts       []ports.PostInput
	createErr   error
	recent      []ports.PostRef
	recentErr   error
	statuses    map[int]string
	statusErrs  map[int]error
	deleted     []int
	deleteErr   error
	recentCalls int
}

var _ ports.CMS = (*fakeCMS)(nil)

func newFakeCMS() *fakeCMS {
	return &fakeCMS{nextID: 100, statuses: map[int]string{}, statusErrs: map[int]error{}}
}

func (f *fakeCMS) factory() ports.CMSFactory {
	return func(domain.CMSTarget) ports.CMS { return f }
}

func (f *fakeCMS) UploadMediaMultipart(context.Context, ports.MediaUpload) (int, error) {
	return 0, errors.New("not used")
}

func (f *fakeCMS) UploadMediaBinary(context.Context, ports.MediaUpload) (int, error) {
	return 0, errors.New("not used")
}

func (f *fakeCMS) UpdateMedia(context.Context, int, string, string) error { return nil }

func (f *fakeCMS) VerifyConnection(context.Context) ([]ports.Category, error) { return nil, nil }

func (f *fakeCMS) RecentPosts(context.Context, int) ([]ports.PostRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	return f.recent, f.recentErr
}

func (f *fakeCMS) CreatePost(_ context.Context, in ports.PostInput) (ports.PublishedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, in)
	if f.createErr != nil {
		return ports.PublishedPost{}, f.createErr
	}
	f.nextID++
	return ports.PublishedPost{ID: f.nextID, Link: "https://blog.example.com/?p=" + strconv.Itoa(f.nextID), Status: string(in.Status)}, nil
}

func (f *fakeCMS) PostStatus(_ context.Context, id int) (string, error) {
	if err := f.statusErrs[id]; err != nil {
		return "", err
	}
	return f.statuses[id], nil
}

func (f *fakeCMS) DeletePost(_ context.Context, id int, _ bool) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *fakeCMS) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type fakeNotifier struct {
	digests []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return nil
}
