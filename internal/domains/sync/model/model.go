package model

const (
	// LockKey guards SyncAll so only one full pass runs at a time across instances.
	LockKey = "sync:lock"

	// Actor is recorded as created_by/modified_by on bookings written from feeds.
	Actor = "system:sync"

	ArchiveDirectory   = "feeds"
	ArchiveContentType = "text/calendar"

	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerRoom      = "room"

	EventSyncCompleted = "sync.completed"

	MetricBookingsSynced = "lodge.sync.bookings.synced"
	MetricConflicts      = "lodge.sync.conflicts"
	MetricFeedFailures   = "lodge.sync.feed_failures"
	MetricEventFailures  = "lodge.sync.event_failures"
)
