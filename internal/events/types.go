package events

// Topic names a queue the pipeline reads from or writes to.
type Topic string

const (
	// TopicMatchRequests carries inbound "find me a doctor" requests.
	TopicMatchRequests Topic = "appointments.match.requested"
	// TopicResults carries successful matches and confirmation outcomes.
	TopicResults Topic = "appointments.match.succeeded"
	// TopicErrors carries business failures (no slot, expired hold).
	TopicErrors Topic = "appointments.match.failed"
	// TopicConfirmations carries patient confirm/decline decisions.
	TopicConfirmations Topic = "appointments.confirmation.requested"
)

// AllTopics lists every topic in declaration order.
var AllTopics = []Topic{TopicMatchRequests, TopicResults, TopicErrors, TopicConfirmations}

// MatchRequest asks for the earliest slot in a specialty.
type MatchRequest struct {
	Specialty   string `json:"specialty"`
	ComplaintID string `json:"complaint_id"`
}

// MatchSucceeded announces a held slot.
type MatchSucceeded struct {
	ComplaintID string `json:"complaint_id"`
	Doctor      string `json:"doctor"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// Failure reports a business-level failure for a complaint.
type Failure struct {
	ComplaintID string `json:"complaint_id"`
	Message     string `json:"message"`
}

// Confirmation is the patient's decision on a held slot.
type Confirmation struct {
	ComplaintID string `json:"complaint_id"`
	Confirmed   bool   `json:"confirmed"`
	PatientID   int64  `json:"patient_id"`
}

// ConfirmationResult acknowledges a processed confirmation.
type ConfirmationResult struct {
	ComplaintID string `json:"complaint_id"`
	Message     string `json:"message"`
}

// Result messages published by the consumers.
const (
	MessageReservationMissing   = "reservation not found or expired"
	MessageAppointmentConfirmed = "appointment confirmed"
	MessageReservationCancelled = "reservation cancelled"
	MessageSlotTaken            = "slot no longer available"
)
