package source

import "time"

// Email is the metadata-level view of one inbox item. Body text is
// never loaded.
type Email struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Subject        string    `json:"subject,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	HiddenPriority string    `json:"hidden_priority,omitempty"`
	Read           bool      `json:"read"`
}

// PullRequest is the review-queue view of one open PR.
type PullRequest struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Repo      string    `json:"repo"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
	Reviewer  string    `json:"reviewer,omitempty"`
}

// AgeHours is the time the PR has been waiting, relative to now.
func (pr PullRequest) AgeHours(now time.Time) float64 {
	return now.Sub(pr.CreatedAt).Hours()
}

// HealthRecord is one day of activity metrics.
type HealthRecord struct {
	Date       string  `json:"date"`
	SleepHours float64 `json:"sleep_hours"`
	Steps      int     `json:"steps"`
}

// Transaction is the metadata-level view of one payment.
type Transaction struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Amount   float64   `json:"amount"`
	Category string    `json:"category"`
	Merchant string    `json:"merchant,omitempty"`
}
