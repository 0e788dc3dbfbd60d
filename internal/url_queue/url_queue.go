package urlqueue

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// URLQueue hands out each distinct URL exactly once.
type URLQueue struct {
	URLs   map[string]bool
	Queue  []string
	Source string
	mu     sync.Mutex
}

func NewURLQueue(source string) *URLQueue {
	return &URLQueue{
		URLs:   make(map[string]bool),
		Queue:  make([]string, 0),
		Source: source,
	}
}

// Add enqueues urlStr unless it was added before during the queue's lifetime.
func (q *URLQueue) Add(urlStr string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.URLs[urlStr] {
		return false
	}
	q.URLs[urlStr] = true
	q.Queue = append(q.Queue, urlStr)
	return true
}

func (q *URLQueue) Get() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.Queue) == 0 {
		return "", false
	}
	url := q.Queue[0]
	q.Queue = q.Queue[1:]
	return url, true
}

func (q *URLQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Queue)
}

// TargetURL appends param=index to base. A base that already carries a
// query string gets the pair joined with '&'.
func TargetURL(base, param string, index int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	return base + sep + url.QueryEscape(param) + "=" + strconv.Itoa(index)
}

// GenerateRangeURLs returns one target per index of the inclusive range
// [start, end], in index order. An inverted range yields nil.
func GenerateRangeURLs(base, param string, start, end int) []string {
	if start > end {
		return nil
	}
	urls := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		urls = append(urls, TargetURL(base, param, i))
	}
	return urls
}

func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""

	parsed.Host = strings.TrimPrefix(parsed.Host, "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

// RobotsURL returns the conventional robots.txt location for the host of urlStr.
func RobotsURL(urlStr string) (string, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", urlStr)
	}
	return fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host), nil
}

func ComputeContentHash(content string) string {
	hash := md5.Sum([]byte(content))
	return fmt.Sprintf("%x", hash)
}
