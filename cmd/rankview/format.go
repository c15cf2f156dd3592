package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"rankview/core"
)

// printLeaderboard renders ranked rows as an aligned table.
func printLeaderboard(w io.Writer, tf core.TimeFrame, entries []core.LeaderboardEntry, loading bool, errMsg string, updated time.Time) {
	status := ""
	if loading {
		status = " (loading)"
	}
	fmt.Fprintf(w, "%s leaderboard%s", tf, status)
	if !updated.IsZero() {
		fmt.Fprintf(w, ", updated %s", humanize.Time(updated))
	}
	fmt.Fprintln(w)
	if errMsg != "" {
		fmt.Fprintf(w, "  error: %s\n", errMsg)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "  no entries")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", humanize.Ordinal(e.Rank), e.DisplayName, humanize.Comma(e.Score))
	}
	tw.Flush()
}

// printProfile renders the signed-in user, or a placeholder without a session.
func printProfile(w io.Writer, u *core.User, errMsg string) {
	if u == nil {
		fmt.Fprintln(w, "profile: not signed in")
	} else {
		fmt.Fprintf(w, "profile: %s (%s)", u.DisplayName(), u.ID)
		if u.Bio != nil {
			fmt.Fprintf(w, ", %q", *u.Bio)
		}
		if !u.UpdatedAt.IsZero() {
			fmt.Fprintf(w, ", edited %s", humanize.Time(u.UpdatedAt))
		}
		fmt.Fprintln(w)
	}
	if errMsg != "" {
		fmt.Fprintf(w, "  error: %s\n", errMsg)
	}
}

// describeEvent returns a one-line summary of a streamed event.
func describeEvent(e core.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Time.Local().Format("15:04:05"), e.Type)
	switch e.Type {
	case core.EventLeaderboardChanged:
		fmt.Fprintf(&b, " timeframe=%s entries=%d loading=%t", e.TimeFrame, len(e.Entries), e.Loading)
		if e.DataTimeFrame != "" && e.DataTimeFrame != e.TimeFrame {
			fmt.Fprintf(&b, " showing=%s", e.DataTimeFrame)
		}
		if len(e.Entries) > 0 {
			top := e.Entries[0]
			fmt.Fprintf(&b, " leader=%s(%s)", top.DisplayName, humanize.Comma(top.Score))
		}
	case core.EventProfileChanged:
		if e.Profile != nil {
			fmt.Fprintf(&b, " user=%s name=%q", e.UserID, e.Profile.DisplayName())
		} else {
			b.WriteString(" signed_out")
		}
	case core.EventProfileUpdated:
		fmt.Fprintf(&b, " user=%s", e.UserID)
		if e.Profile != nil {
			fmt.Fprintf(&b, " name=%q", e.Profile.DisplayName())
		}
	case core.EventLoggedOut:
		fmt.Fprintf(&b, " user=%s", e.UserID)
	case core.EventCommandFailed:
		fmt.Fprintf(&b, " command=%s", e.Command)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}
