package parser

// Status is the outcome category of an sshd event.
type Status string

const (
	StatusFailed       Status = "FAILED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusClosed       Status = "CLOSED"
	// StatusSuccess is rendered in green but never produced by ClassifyStatus.
	StatusSuccess Status = "SUCCESS"
	// StatusNone marks a structural match with no recognized outcome.
	StatusNone Status = ""
)

// UnknownUser is reported when a matched line carries no username token.
const UnknownUser = "unknown"

// AuthEvent is a single sshd connection/authentication event extracted from
// one auth log line. Date and Time are kept exactly as logged (syslog omits
// the year).
type AuthEvent struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	User     string `json:"user"`
	SourceIP string `json:"source_ip"`
	Port     string `json:"port"`
	Status   Status `json:"status,omitempty"`
}

// Parser defines the interface for log parsers
type Parser interface {
	Parse(line string) *AuthEvent
}
