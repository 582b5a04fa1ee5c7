package types

type OutputRotate struct {
	Success bool `json:"success"`
}

type OutputRotateOverdue struct {
	Rotated int `json:"rotated"`
}

// rotation status for a single public key
type OutputRotationStatus struct {
	PublicKey         string          `json:"publicKey"`
	Overdue           bool            `json:"overdue"`
	DaysUntilRotation *int            `json:"daysUntilRotation,omitempty"`
	Record            *RotationRecord `json:"record,omitempty"`
}
