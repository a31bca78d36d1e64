package goengine

import "time"

// MailboxKind identifies the type of mailbox a metric relates to
type MailboxKind string

const (
	// CommandMailbox is the kind used by the commanding package
	CommandMailbox MailboxKind = "command"
	// EventMailbox is the kind used by the eventing package
	EventMailbox MailboxKind = "event"
)

// Metrics a structured metrics interface
type Metrics interface {
	MailboxCreated(kind MailboxKind)
	MailboxRemoved(kind MailboxKind)
	MessageQueued(kind MailboxKind)
	MessageProcessed(kind MailboxKind, duration time.Duration, success bool)
	RetryAttempted(operation string)
}
