package domain

import (
	"regexp"
	"strings"
	"time"
)

// AdminAuthor is the author label written for admin replies.
const AdminAuthor = "Admin"

// ConversationTimeLayout formats entry timestamps.
const ConversationTimeLayout = "2006-01-02 15:04"

// NoAdminReply is shown when a ticket has no admin reply yet.
const NoAdminReply = "-"

var entryPattern = regexp.MustCompile(`^\[([^\]]*)\] ([^:]+): ?(.*)$`)

// ConversationEntry is one line of a ticket's comment log.
type ConversationEntry struct {
	Timestamp string
	Author    string
	Body      string
	// Raw holds the original line when it did not match the entry format.
	Raw string
}

// FromAdmin reports whether the entry was written by an admin.
func (e ConversationEntry) FromAdmin() bool {
	return e.Author == AdminAuthor
}

// Text is the entry as it would be displayed on one line.
func (e ConversationEntry) Text() string {
	if e.Author == "" {
		return e.Raw
	}
	return FormatEntry(e.Timestamp, e.Author, e.Body)
}

// NewEntryLine builds a single log line, newline-terminated. Newlines inside
// body are collapsed so every entry stays on one line.
func NewEntryLine(at time.Time, author, body string) string {
	return FormatEntry(at.Format(ConversationTimeLayout), author, singleLine(body)) + "\n"
}

// FormatEntry renders an entry without the trailing newline.
func FormatEntry(timestamp, author, body string) string {
	return "[" + timestamp + "] " + author + ": " + body
}

// ParseConversation splits a comment log into entries, skipping blank lines.
func ParseConversation(log string) []ConversationEntry {
	lines := strings.Split(strings.TrimSpace(log), "\n")
	entries := make([]ConversationEntry, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		match := entryPattern.FindStringSubmatch(line)
		if match == nil {
			entries = append(entries, ConversationEntry{Raw: line})
			continue
		}
		entries = append(entries, ConversationEntry{
			Timestamp: match[1],
			Author:    strings.TrimSpace(match[2]),
			Body:      match[3],
		})
	}
	return entries
}

// LatestAdminReply returns the body of the most recent admin entry, or
// NoAdminReply.
func LatestAdminReply(log string) string {
	entries := ParseConversation(log)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].FromAdmin() {
			return strings.TrimSpace(entries[i].Body)
		}
	}
	return NoAdminReply
}

func singleLine(body string) string {
	return strings.Join(strings.Fields(body), " ")
}
