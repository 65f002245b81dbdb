package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLifecycleSweep = "engagements.lifecycle.sweep"

const TaskBookingReminder = "engagements.booking.reminder"

type LifecycleSweepPayload struct {
	RequestedAt string `json:"requestedAt"`
}

type BookingReminderPayload struct {
	BookingID string `json:"bookingId"`
}

func NewLifecycleSweepTask(payload LifecycleSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLifecycleSweep, data), nil
}

func ParseLifecycleSweepPayload(task *asynq.Task) (LifecycleSweepPayload, error) {
	var payload LifecycleSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LifecycleSweepPayload{}, err
	}
	return payload, nil
}

func NewBookingReminderTask(payload BookingReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingReminder, data), nil
}

func ParseBookingReminderPayload(task *asynq.Task) (BookingReminderPayload, error) {
	var payload BookingReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingReminderPayload{}, err
	}
	return payload, nil
}
