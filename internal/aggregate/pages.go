package aggregate

import (
	"sort"

	"pagewatch/internal/events"
)

// PageStat is the per-page view count with its bounce rate: the percentage
// of sessions entering on the page that never viewed a second page.
type PageStat struct {
	Page       string  `json:"page"`
	Count      int     `json:"count"`
	BounceRate float64 `json:"bounce_rate"`
}

// PageEngagementStat is the per-page average dwell time and the number of
// sessions the page appeared in.
type PageEngagementStat struct {
	Page       string  `json:"page"`
	AvgSeconds float64 `json:"avg_seconds"`
	Sessions   int     `json:"sessions"`
}

// PageCounts computes per-page totals and bounce rates. A session is all
// events sharing a user_id, ordered by timestamp; a bounce is a session
// with a single event.
func PageCounts(evts []events.AnalyticsEvent) []PageStat {
	counts := make(map[string]int)
	entrances := make(map[string]int)
	bounces := make(map[string]int)

	for _, e := range evts {
		counts[e.PagePath]++
	}
	for _, session := range sessionsByUser(evts) {
		entry := session[0].PagePath
		entrances[entry]++
		if len(session) == 1 {
			bounces[entry]++
		}
	}

	result := make([]PageStat, 0, len(counts))
	for page, count := range counts {
		rate := 0.0
		if entrances[page] > 0 {
			rate = float64(bounces[page]) / float64(entrances[page]) * 100
		}
		result = append(result, PageStat{Page: page, Count: count, BounceRate: rate})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Page < result[j].Page
	})
	return result
}

// PageEngagement computes per-page average time and session counts. The gap
// between consecutive events in a session is attributed to the earlier
// page; the last page of a session contributes no dwell sample.
func PageEngagement(evts []events.AnalyticsEvent) []PageEngagementStat {
	totalSeconds := make(map[string]float64)
	samples := make(map[string]int)
	sessions := make(map[string]int)

	for _, session := range sessionsByUser(evts) {
		seen := make(map[string]bool)
		for i, e := range session {
			if !seen[e.PagePath] {
				seen[e.PagePath] = true
				sessions[e.PagePath]++
			}
			if i+1 < len(session) {
				gap := session[i+1].Timestamp.Sub(e.Timestamp).Seconds()
				if gap >= 0 {
					totalSeconds[e.PagePath] += gap
					samples[e.PagePath]++
				}
			}
		}
	}

	result := make([]PageEngagementStat, 0, len(sessions))
	for page, count := range sessions {
		avg := 0.0
		if samples[page] > 0 {
			avg = totalSeconds[page] / float64(samples[page])
		}
		result = append(result, PageEngagementStat{Page: page, AvgSeconds: avg, Sessions: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Sessions != result[j].Sessions {
			return result[i].Sessions > result[j].Sessions
		}
		return result[i].Page < result[j].Page
	})
	return result
}

// sessionsByUser groups events into per-user sessions ordered by
// timestamp. Session order across users follows first appearance in the
// log, which keeps output deterministic for a given log.
func sessionsByUser(evts []events.AnalyticsEvent) [][]events.AnalyticsEvent {
	grouped := make(map[string][]events.AnalyticsEvent)
	var order []string
	for _, e := range evts {
		if _, ok := grouped[e.UserID]; !ok {
			order = append(order, e.UserID)
		}
		grouped[e.UserID] = append(grouped[e.UserID], e)
	}

	result := make([][]events.AnalyticsEvent, 0, len(grouped))
	for _, userID := range order {
		session := grouped[userID]
		sort.SliceStable(session, func(i, j int) bool {
			return session[i].Timestamp.Before(session[j].Timestamp)
		})
		result = append(result, session)
	}
	return result
}
