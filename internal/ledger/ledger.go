// Package ledger tracks per-user download counters that survive restarts.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// UserRecord holds the counters for a single user.
type UserRecord struct {
	Username  string `json:"username"`
	Downloads int    `json:"downloads"`
	FirstSeen string `json:"first_seen,omitempty"`
	LastSeen  string `json:"last_seen,omitempty"`
}

// Stats is the full ledger document. TotalUsers counts every user id ever
// recorded and TotalDownloads is the sum of all per-user counters.
type Stats struct {
	TotalDownloads int                   `json:"total_downloads"`
	TotalUsers     int                   `json:"total_users"`
	CreatedAt      string                `json:"created_at,omitempty"`
	Users          map[string]UserRecord `json:"users"`
}

// Store is the durable backend for the ledger.
type Store interface {
	Load(ctx context.Context) (Stats, error)
	RecordDownload(ctx context.Context, userID int64, username string) error
}

const summaryTopN = 5

// Summary renders the ledger as a human-readable report: global totals plus
// the top users ranked by download count.
func (s Stats) Summary() string {
	var b strings.Builder

	b.WriteString("📊 Bot statistics\n\n")
	fmt.Fprintf(&b, "🔢 Total downloads: %d\n", s.TotalDownloads)
	fmt.Fprintf(&b, "👥 Total users: %d\n\n", s.TotalUsers)
	fmt.Fprintf(&b, "🏆 Top %d users:\n", summaryTopN)

	type ranked struct {
		id  string
		rec UserRecord
	}

	users := make([]ranked, 0, len(s.Users))
	for id, rec := range s.Users {
		users = append(users, ranked{id: id, rec: rec})
	}

	// Ties broken by user id so the report is stable between calls.
	sort.Slice(users, func(i, j int) bool {
		if users[i].rec.Downloads != users[j].rec.Downloads {
			return users[i].rec.Downloads > users[j].rec.Downloads
		}

		return users[i].id < users[j].id
	})

	if len(users) == 0 {
		b.WriteString("no users yet\n")

		return b.String()
	}

	if len(users) > summaryTopN {
		users = users[:summaryTopN]
	}

	for i, u := range users {
		name := u.rec.Username
		if name == "" {
			name = "unknown"
		}

		fmt.Fprintf(&b, "%d. @%s - %d downloads\n", i+1, name, u.rec.Downloads)
	}

	return b.String()
}
