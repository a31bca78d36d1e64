package goengine

import "time"

// NopMetrics is default Metrics handler in case nil is passed
var NopMetrics Metrics = &nopMetrics{}

type nopMetrics struct{}

func (nm *nopMetrics) MailboxCreated(MailboxKind)                        {}
func (nm *nopMetrics) MailboxRemoved(MailboxKind)                        {}
func (nm *nopMetrics) MessageQueued(MailboxKind)                         {}
func (nm *nopMetrics) MessageProcessed(MailboxKind, time.Duration, bool) {}
func (nm *nopMetrics) RetryAttempted(string)                             {}
