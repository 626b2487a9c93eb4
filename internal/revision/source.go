package revision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultAPIURL is the action API endpoint revisions are fetched from.
const DefaultAPIURL = "https://www.wikidata.org/w/api.php"

const defaultUserAgent = "wdrc/0.1.0 (https://github.com/choplin/wdrc)"

// ErrRevisionFetch is matched by every FetchError.
var ErrRevisionFetch = errors.New("revision fetch failed")

// FetchError reports that the revision pair of an item could not be loaded.
type FetchError struct {
	Title    string
	Old, New uint64
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s revisions %d..%d: %v", e.Title, e.Old, e.New, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrRevisionFetch }

// HTTPError is a non-success response from the API.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Status)
}

// Source loads the old and new revision documents of an item.
type Source interface {
	Revisions(ctx context.Context, title string, oldID, newID uint64) (Document, Document, error)
}

// HTTPSourceOptions configures an HTTPSource. Zero values select defaults.
type HTTPSourceOptions struct {
	APIURL     string
	UserAgent  string
	HTTPClient *http.Client
	MaxRetries int
}

// HTTPSource fetches both revisions of an item with a single action API request.
type HTTPSource struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewHTTPSource(opts HTTPSourceOptions) *HTTPSource {
	apiURL := strings.TrimSpace(opts.APIURL)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &HTTPSource{
		apiURL:     apiURL,
		userAgent:  userAgent,
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  250 * time.Millisecond,
		maxDelay:   5 * time.Second,
	}
}

func (s *HTTPSource) Revisions(ctx context.Context, title string, oldID, newID uint64) (Document, Document, error) {
	body, err := s.get(ctx, s.revisionsURL(title, oldID, newID))
	if err != nil {
		return nil, nil, &FetchError{Title: title, Old: oldID, New: newID, Err: err}
	}
	oldDoc, newDoc, err := ExtractRevisions(body, oldID, newID)
	if err != nil {
		return nil, nil, &FetchError{Title: title, Old: oldID, New: newID, Err: err}
	}
	return oldDoc, newDoc, nil
}

func (s *HTTPSource) revisionsURL(title string, oldID, newID uint64) string {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "revisions")
	q.Set("titles", title)
	q.Set("rvprop", "ids|content")
	q.Set("rvstartid", strconv.FormatUint(newID, 10))
	q.Set("rvendid", strconv.FormatUint(oldID, 10))
	q.Set("rvslots", "main")
	q.Set("format", "json")
	return s.apiURL + "?" + q.Encode()
}

func (s *HTTPSource) get(ctx context.Context, requestURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if attempt < s.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, s.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return payload, nil
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < s.maxRetries {
			if waitErr := waitWithContext(ctx, s.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

func (s *HTTPSource) retryDelay(attempt int, retryAfter string) time.Duration {
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && seconds >= 0 {
		delay := time.Duration(seconds) * time.Second
		if delay > s.maxDelay {
			return s.maxDelay
		}
		return delay
	}
	delay := s.baseDelay << (attempt - 1)
	if delay > s.maxDelay || delay <= 0 {
		return s.maxDelay
	}
	return delay
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExtractRevisions picks the two requested revisions out of an action API response.
// Revisions with other ids are ignored. Slot content may appear under "*" (format
// version 1) or "content" (format version 2).
func ExtractRevisions(body []byte, oldID, newID uint64) (Document, Document, error) {
	if !gjson.ValidBytes(body) {
		return nil, nil, errors.New("response is not valid JSON")
	}
	found := make(map[uint64]Document, 2)
	var parseErr error
	gjson.GetBytes(body, "query.pages").ForEach(func(_, page gjson.Result) bool {
		page.Get("revisions").ForEach(func(_, rev gjson.Result) bool {
			revID := rev.Get("revid").Uint()
			if revID != oldID && revID != newID {
				return true
			}
			content := rev.Get(`slots.main.\*`)
			if !content.Exists() {
				content = rev.Get("slots.main.content")
			}
			if content.Type != gjson.String {
				return true
			}
			doc, err := ParseDocument([]byte(content.Str))
			if err != nil {
				parseErr = err
				return true
			}
			found[revID] = doc
			return true
		})
		return true
	})

	oldDoc, okOld := found[oldID]
	newDoc, okNew := found[newID]
	switch {
	case !okOld && parseErr != nil, !okNew && parseErr != nil:
		return nil, nil, parseErr
	case !okOld:
		return nil, nil, fmt.Errorf("old revision %d missing from response", oldID)
	case !okNew:
		return nil, nil, fmt.Errorf("new revision %d missing from response", newID)
	}
	return oldDoc, newDoc, nil
}
