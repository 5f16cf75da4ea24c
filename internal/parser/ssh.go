package parser

import (
	"regexp"
	"strings"
)

// sshdPattern finds, in order: syslog date and time, hostname, the sshd
// tag, an optional keyword phrase, an optional "invalid user " marker, an
// optional username, the connector and the peer address and port.
// "Connection closed by" and "Connection reset by" carry their own
// connector; every other form needs " from ".
const sshdPattern = `(?P<date>\w{3} +\d{1,2}) (?P<time>\d{2}:\d{2}:\d{2}) [\w-]+ sshd\[\d+\]: ` +
	`(?:Connection (?:closed|reset) by (?:(?:invalid|authenticating) user (?P<peer>\w+) )?` +
	`|(?:(?:Invalid user|Failed password for|Received disconnect) ?)?(?:invalid user )?(?:(?P<user>\w+) ?)?from )` +
	`(?P<ip>\d{1,3}(?:\.\d{1,3}){3}) port (?P<port>\d+)`

// SSHParser extracts events from sshd logs
type SSHParser struct {
	re *regexp.Regexp

	// submatch indexes
	date, time, user, peer, ip, port int
}

// NewSSHParser creates a new SSH log parser
func NewSSHParser() *SSHParser {
	re := regexp.MustCompile(sshdPattern)
	return &SSHParser{
		re:   re,
		date: re.SubexpIndex("date"),
		time: re.SubexpIndex("time"),
		user: re.SubexpIndex("user"),
		peer: re.SubexpIndex("peer"),
		ip:   re.SubexpIndex("ip"),
		port: re.SubexpIndex("port"),
	}
}

// Parse implements the Parser interface. It returns nil when the line does
// not contain a complete sshd address/port record.
func (p *SSHParser) Parse(line string) *AuthEvent {
	if !strings.Contains(line, "sshd[") {
		return nil
	}

	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	user := m[p.user]
	if user == "" {
		user = m[p.peer]
	}
	if user == "" {
		user = UnknownUser
	}

	return &AuthEvent{
		Date:     m[p.date],
		Time:     m[p.time],
		User:     user,
		SourceIP: m[p.ip],
		Port:     m[p.port],
		Status:   ClassifyStatus(line),
	}
}

// ClassifyStatus searches the whole raw line for outcome keywords.
// The first rule that matches wins.
func ClassifyStatus(line string) Status {
	switch {
	case strings.Contains(line, "Failed password"):
		return StatusFailed
	case strings.Contains(line, "disconnect"):
		return StatusDisconnected
	case strings.Contains(line, "Connection closed"), strings.Contains(line, "reset by"):
		return StatusClosed
	default:
		return StatusNone
	}
}
