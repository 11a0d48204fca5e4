package entity

import "time"

type ScanAction string

const (
	ActionScan            ScanAction = "scan"
	ActionView            ScanAction = "view"
	ActionDownload        ScanAction = "download"
	ActionPasscodeAttempt ScanAction = "passcode_attempt"
)

// ScanEvent is one row of the append-only audit log. Every gate evaluation
// produces exactly one event, success or failure. Events are never updated
// or deleted; the analytics read-side depends on that.
type ScanEvent struct {
	Id         string     `json:"id" bson:"_id"`
	BundleId   string     `json:"bundle_id" bson:"bundle_id"`
	UserId     string     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	DocumentId string     `json:"document_id,omitempty" bson:"document_id,omitempty"`
	Action     ScanAction `json:"action" bson:"action"`
	Success    bool       `json:"success" bson:"success"`
	IPAddress  string     `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
	Country    string     `json:"country,omitempty" bson:"country,omitempty"`
	Timestamp  time.Time  `json:"timestamp" bson:"timestamp"`
}

// ScanMeta is the network/client metadata captured at the HTTP edge and
// stamped onto every event of the request.
type ScanMeta struct {
	UserId    string
	IPAddress string
	UserAgent string
	Country   string
}
