package normalize

import "schoolcal/internal/models"

const (
	hour = 60
	day  = 24 * hour
)

var reminderMinutes = map[models.EventType][]int{
	models.EventTypeTest:        {day, 2 * day},
	models.EventTypeAssignment:  {2 * day},
	models.EventTypeFieldTrip:   {2 * day, 12 * hour},
	models.EventTypeHalfDay:     {hour},
	models.EventTypeConference:  {day},
	models.EventTypePerformance: {day, 2 * hour},
	models.EventTypeHoliday:     {day},
}

var defaultReminderMinutes = []int{day}

// Reminders returns the popup reminders for an event type, in a fixed order.
// Types without an entry get a single reminder one day before.
func Reminders(t models.EventType) []models.Reminder {
	minutes, ok := reminderMinutes[t]
	if !ok {
		minutes = defaultReminderMinutes
	}
	out := make([]models.Reminder, 0, len(minutes))
	for _, m := range minutes {
		out = append(out, models.Reminder{Minutes: m, Method: models.ReminderPopup})
	}
	return out
}
