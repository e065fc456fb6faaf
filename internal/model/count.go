package model

// UserCount is a snapshot of the number of user records.
type UserCount struct {
	Count int64 `json:"count"`
}

// Dashboard is the summary rendered on the landing page.
type Dashboard struct {
	TotalUsers    int64  `json:"total_users"`
	TotalLabel    string `json:"total_label"`
	NextMilestone int64  `json:"next_milestone"`
	ToMilestone   int64  `json:"to_milestone"`
	IsCommunity   bool   `json:"is_community"`
}
