package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch covers network errors, timeouts and exhausted proxy chains.
	ErrFetch = errors.New("fetch failed")
	// ErrParse marks a malformed feed, sitemap or HTML document.
	ErrParse = errors.New("parse failed")
	// ErrBlockedContent marks a WAF or challenge page served instead of content.
	ErrBlockedContent = errors.New("blocked content")
	// ErrDuplicateCandidate marks a candidate already present in the ledger.
	ErrDuplicateCandidate = errors.New("duplicate candidate")
	// ErrRewrite wraps failures of the external rewrite collaborator.
	ErrRewrite = errors.New("rewrite failed")
	// ErrMissingCredential is returned when no key is configured for a model family.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrRewrite)
	// ErrImageAcquisition marks an image that could not be downloaded or uploaded.
	ErrImageAcquisition = errors.New("image acquisition failed")
	// ErrPublish wraps non-2xx CMS responses on publish.
	ErrPublish = errors.New("publish failed")
	// ErrNoCandidates aborts a campaign run when discovery found nothing.
	ErrNoCandidates = errors.New("no candidates discovered")
	// ErrRunInProgress is returned when the global run lock is held.
	ErrRunInProgress = errors.New("a campaign run is already in progress")
	// ErrNotFound is returned by stores and the CMS for missing entities.
	ErrNotFound = errors.New("not found")
)
