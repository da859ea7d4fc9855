package store

// TimeRange is a bookable window within a day, "HH:MM" inclusive start,
// exclusive end.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AppointmentConfig describes one bookable city service.
type AppointmentConfig struct {
	ID          string
	Name        string
	Description string
	// AvailableDays holds lowercase English weekday names ("monday").
	AvailableDays []string
	TimeRanges    []TimeRange
	SlotMinutes   int
	MaxPerSlot    int
	LeadTimeHours int
	Active        bool
}

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a created booking record.
type Appointment struct {
	// ID has the form "book-NNN" with a zero-padded sequence.
	ID          string
	ServiceID   string
	ServiceName string
	// Date is "YYYY-MM-DD", Slot is "HH:MM".
	Date      string
	Slot      string
	Name      string
	Email     string
	Phone     string
	Status    AppointmentStatus
	CreatedTs int64
}

type FindAppointment struct {
	ServiceID *string
	Date      *string
	Status    *AppointmentStatus
}
