package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"coupon_spider/internal/models"
)

// stripped elements never contribute text.
const strippedSelector = "script, style"

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Text returns the visible text of rawHTML: script and style content is
// dropped, every remaining text node is trimmed, empty ones are skipped and
// the rest are joined by a single space. Malformed markup is tolerated.
func (e *Extractor) Text(rawHTML string) string {
	// The parser only fails on reader errors, which a strings.Reader never returns.
	root, err := html.ParseWithOptions(strings.NewReader(rawHTML), html.ParseOptionEnableScripting(false))
	if err != nil {
		e.logger.Debug("extract: parse failed", "error", err)
		return ""
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find(strippedSelector).Remove()

	var parts []string
	for _, n := range doc.Selection.Nodes {
		parts = collectText(n, parts)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts []string) []string {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			parts = append(parts, s)
		}
		return parts
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = collectText(c, parts)
	}
	return parts
}

// Article pulls title and excerpt with readability. It is best effort:
// failures yield empty fields.
func (e *Extractor) Article(rawHTML, pageURL string) models.ExtractedArticle {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return models.ExtractedArticle{}
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		e.logger.Debug("extract: readability failed", "url", pageURL, "error", err)
		return models.ExtractedArticle{}
	}

	return models.ExtractedArticle{
		Title:   normalizeText(article.Title),
		Excerpt: normalizeText(article.Excerpt),
	}
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
