package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const userAgent = "myrient-filter/1.0"

// linkSelector matches the file links of Myrient's linked-row listing.
const linkSelector = "tbody > tr > td.link > a"

// ErrTextResponse is returned by DownloadFile when the server answers a file
// URL with a text document instead of the file.
var ErrTextResponse = errors.New("text response instead of file")

// Entry represents a file or directory in a directory listing.
type Entry struct {
	Name  string `json:"name"`
	URL   string `json:"url"`            // Full URL
	Size  string `json:"size,omitempty"` // Human-readable size (e.g. "1.2 MiB") or "-" for directories
	Date  string `json:"date,omitempty"` // Last modified date string
	IsDir bool   `json:"is_dir"`
}

// FetchError reports a network failure, timeout or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a listing page that could not be parsed.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing listing %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client handles HTTP requests to the file index.
type Client struct {
	listHTTP *retryablehttp.Client // Retrying client with a short timeout for listings
	dlHTTP   *http.Client          // No timeout for file downloads (managed by context)
	limiter  *rate.Limiter
	baseURL  string
	log      logrus.FieldLogger
}

// New creates a new client. reqPerSec rate-limits every request; retryMax is
// how often a listing request is retried on connection errors and 5xx.
func New(baseURL string, reqPerSec float64, retryMax int, log logrus.FieldLogger) *Client {
	if reqPerSec <= 0 {
		reqPerSec = 5.0
	}
	if retryMax < 0 {
		retryMax = 0
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = retryMax
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.HTTPClient.Timeout = 30 * time.Second
	retry.Logger = debugLogger{log}
	// Hand the final response back so non-2xx statuses can be reported.
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		listHTTP: retry,
		dlHTTP: &http.Client{
			// No timeout -- downloads are long-running and controlled by context.
		},
		limiter: rate.NewLimiter(rate.Limit(reqPerSec), 5),
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DirURL joins path segments onto the base URL, with a trailing slash.
func (c *Client) DirURL(parts ...string) string {
	u := c.baseURL + "/"
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p == "" {
			continue
		}
		u += p + "/"
	}
	return u
}

// ListDirectories returns the decoded names of the sub-directories of subPath
// (e.g. "No-Intro"). An empty subPath lists the base URL.
func (c *Client) ListDirectories(ctx context.Context, subPath string) ([]string, error) {
	dirURL := c.DirURL(subPath)
	links, err := c.fetchLinks(ctx, dirURL)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, l := range links {
		if !strings.HasSuffix(l.href, "/") {
			continue
		}
		dirs = append(dirs, decodeName(l.href))
	}
	return dirs, nil
}

// ListFiles returns every entry of the system directory below subPath.
// Relative hrefs are joined onto the directory URL.
func (c *Client) ListFiles(ctx context.Context, subPath, system string) ([]Entry, error) {
	encodedSystem := strings.ReplaceAll(system, " ", "%20")
	dirURL := c.DirURL(subPath, encodedSystem)
	links, err := c.fetchLinks(ctx, dirURL)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(links))
	for _, l := range links {
		fullURL := l.href
		if !strings.HasPrefix(l.href, "http") {
			fullURL = dirURL + l.href
		}
		entries = append(entries, Entry{
			Name:  decodeName(l.href),
			URL:   fullURL,
			Size:  l.size,
			Date:  l.date,
			IsDir: strings.HasSuffix(l.href, "/"),
		})
	}
	return entries, nil
}

// DownloadFile starts a download of fileURL.
// Returns the response body (caller must close) and the content length.
func (c *Client) DownloadFile(ctx context.Context, fileURL string) (io.ReadCloser, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	// Derive the directory URL for the Referer header.
	parts := strings.Split(fileURL, "/")
	referer := strings.Join(parts[:len(parts)-1], "/") + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	resp, err := c.dlHTTP.Do(req)
	if err != nil {
		return nil, 0, &FetchError{URL: fileURL, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, &FetchError{URL: fileURL, StatusCode: resp.StatusCode}
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text") {
		resp.Body.Close()
		return nil, 0, ErrTextResponse
	}

	return resp.Body, resp.ContentLength, nil
}

// link is one anchor of a listing page.
type link struct {
	href string
	size string
	date string
}

func (c *Client) fetchLinks(ctx context.Context, dirURL string) ([]link, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: dirURL, Err: err}
	}
	c.log.WithField("url", dirURL).Info("Fetching listing")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, dirURL, nil)
	if err != nil {
		return nil, &FetchError{URL: dirURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", dirURL)

	resp, err := c.listHTTP.Do(req)
	if err != nil {
		return nil, &FetchError{URL: dirURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: dirURL, StatusCode: resp.StatusCode}
	}

	return parseListing(resp.Body, dirURL)
}

// parseListing extracts the links of a listing page. Linked-row tables are
// preferred; the first row is the parent directory and is skipped. Pages
// without such rows fall back to a plain anchor walk.
func parseListing(r io.Reader, dirURL string) ([]link, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &ParseError{URL: dirURL, Err: err}
	}

	rows := doc.Find(linkSelector)
	if rows.Length() == 0 {
		var links []link
		for _, n := range doc.Nodes {
			links = append(links, walkAnchors(n)...)
		}
		return links, nil
	}

	var links []link
	rows.Each(func(i int, a *goquery.Selection) {
		if i == 0 {
			return
		}
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		row := a.Closest("tr")
		links = append(links, link{
			href: href,
			size: strings.TrimSpace(row.Find("td.size").Text()),
			date: strings.TrimSpace(row.Find("td.date").Text()),
		})
	})
	return links, nil
}

// walkAnchors collects anchors of an autoindex page, dropping sort, parent
// and self links.
func walkAnchors(n *html.Node) []link {
	var links []link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if l, ok := anchorLink(n); ok {
				links = append(links, l)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return links
}

func anchorLink(a *html.Node) (link, bool) {
	href := ""
	for _, attr := range a.Attr {
		if attr.Key == "href" {
			href = attr.Val
			break
		}
	}
	if href == "" || href == "../" || href == "./" {
		return link{}, false
	}
	if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "?") {
		return link{}, false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return link{}, false
	}

	name := strings.TrimSpace(textContent(a))
	if strings.EqualFold(name, "Parent Directory") || strings.EqualFold(name, "Parent directory/") {
		return link{}, false
	}
	return link{href: href}, true
}

// textContent returns all text content within a node.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}

// decodeName returns the percent-decoded last path segment of href.
func decodeName(href string) string {
	name := strings.TrimRight(href, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

// debugLogger routes retryablehttp's chatter to debug level.
type debugLogger struct {
	log logrus.FieldLogger
}

func (l debugLogger) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
