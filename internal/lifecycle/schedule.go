package lifecycle

import (
	"time"

	"bookclub/internal/store"
)

// ScheduleWeeks is the fixed number of weekly discussions per group.
const ScheduleWeeks = 4

var weeklyTopics = [ScheduleWeeks]string{
	"First Impressions & Setting",
	"Character Development",
	"Plot & Themes",
	"Conclusion & Final Thoughts",
}

// Topic returns the discussion topic for week (1-based), or "" when out of range.
func Topic(week int) string {
	if week < 1 || week > ScheduleWeeks {
		return ""
	}
	return weeklyTopics[week-1]
}

// BuildSchedule lays out the weekly discussions, one every seven days after start.
func BuildSchedule(start time.Time) []store.Discussion {
	schedule := make([]store.Discussion, 0, ScheduleWeeks)
	for week := 1; week <= ScheduleWeeks; week++ {
		schedule = append(schedule, store.Discussion{
			Week:          week,
			ScheduledDate: start.AddDate(0, 0, 7*week),
			Topic:         weeklyTopics[week-1],
		})
	}
	return schedule
}
