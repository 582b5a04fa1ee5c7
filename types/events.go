package types

const (
	// EventRotationOverdue fires for records whose rotation deadline passed
	EventRotationOverdue = "rotation-overdue"
	// EventRotationDueSoon fires for records inside the warning window
	EventRotationDueSoon = "rotation-due-soon"
	// EventSendRotationPacket records a successful packet hand-off to the transport
	EventSendRotationPacket = "send-rotation-packet"
)

// RotationEvent is what the manager emits towards the notification
// collaborator. Payload and Recipient are set for send-rotation-packet only.
type RotationEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	PublicKey string `json:"publicKey,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Payload   []byte `json:"payload,omitempty"`
	Created   int64  `json:"created"` // epoch millis
}
