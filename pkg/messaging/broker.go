package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels carrying appointment lifecycle events.
const (
	ChannelAppointmentCreated = "appointments.created"
	ChannelAppointmentUpdated = "appointments.updated"
)

// AppointmentEvent is the payload published on booking creation and update.
type AppointmentEvent struct {
	RecordNumber string `json:"record_number"`
	DoctorID     int64  `json:"doctor_id"`
	PatientID    int64  `json:"patient_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Status       string `json:"status"`
	ActorUserID  int64  `json:"actor_user_id"`
}
