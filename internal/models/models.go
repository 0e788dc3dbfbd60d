package models

import "time"

// ResultRecord is the persisted pair for one accepted page.
type ResultRecord struct {
	HTML string `json:"html" bson:"html"`
	Text string `json:"text" bson:"text"`
}

type ExtractedArticle struct {
	Title   string
	Excerpt string
}

type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeRedeemed   Outcome = "redeemed"
	OutcomeFailed     Outcome = "failed"
	OutcomeDisallowed Outcome = "disallowed"
)

// RunStats summarises a single pipeline run.
type RunStats struct {
	Generated  int
	Disallowed int
	Accepted   int
	Redeemed   int
	Failed     int
	Duration   time.Duration
}

func (s *RunStats) Record(o Outcome) {
	switch o {
	case OutcomeAccepted:
		s.Accepted++
	case OutcomeRedeemed:
		s.Redeemed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeDisallowed:
		s.Disallowed++
	}
}

type Document struct {
	ID            string `bson:"_id,omitempty"`
	URL           string `bson:"url"`
	NormalizedURL string `bson:"normalized_url"`
	Source        string `bson:"source"`
	HTMLContent   string `bson:"html_content"`
	Title         string `bson:"title"`
	Excerpt       string `bson:"excerpt"`
	Content       string `bson:"content"`
	ContentHash   string `bson:"content_hash"`
	FirstScraped  int64  `bson:"first_scraped"`
	LastScraped   int64  `bson:"last_scraped"`
	ScrapedCount  int    `bson:"scraped_count"`
	ContentLength int    `bson:"content_length"`
}

type CrawlHistory struct {
	ID           string  `bson:"_id,omitempty"`
	RunID        string  `bson:"run_id"`
	Source       string  `bson:"source"`
	URL          string  `bson:"url"`
	Status       Outcome `bson:"status"` // accepted, redeemed, failed, disallowed
	ContentHash  string  `bson:"content_hash,omitempty"`
	Timestamp    int64   `bson:"timestamp"`
	Duration     int     `bson:"duration_ms"`
	ErrorMessage string  `bson:"error_message,omitempty"`
}
