package generator

import (
	"fmt"
	"time"
)

// DefaultTweetCount is used when the caller does not ask for a length.
const DefaultTweetCount = 10

// Post is one generated tweet and the description of the image it wants.
type Post struct {
	Text       string
	ImageQuery string
}

// Thread is a parsed completion. DeclaredCount is the N of the first "1/N"
// marker, or zero when the model numbered nothing.
type Thread struct {
	Posts         []Post
	DeclaredCount int
	Raw           string
}

// IncompleteError means the model announced more tweets than it delivered.
type IncompleteError struct {
	Declared int
	Parsed   int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("generation incomplete: expected %d tweets, got %d", e.Declared, e.Parsed)
}

// Attempt records one generation call.
type Attempt struct {
	Declared  int
	Parsed    int
	Err       error
	CreatedAt time.Time
}
