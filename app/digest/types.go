package digest

import "time"

// Item is a single piece of content considered for a digest. Items are
// produced by the fetcher and carry the keywords that matched them.
type Item struct {
	ID              string
	Title           string
	Link            string
	Source          string
	Summary         string
	PublishedAt     *time.Time
	MatchedKeywords []string
}

// Message is a fully rendered digest ready for delivery. ItemCount is the
// number of items that survived filtering and deduplication.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	ItemCount int
	BuiltAt   time.Time
}
