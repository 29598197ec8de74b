package models

import "time"

// Manual is the bookkeeping record for one ingested repair manual.
type Manual struct {
	ID         string
	SourceURL  string
	Title      string
	Category   string
	EntryID    string
	IngestedAt time.Time
}
