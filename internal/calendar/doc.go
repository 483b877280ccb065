// Package calendar wraps the Google Calendar API for the scheduling
// step: querying busy intervals through the freebusy endpoint and
// creating events.
//
// Busy interval timestamps are validated on arrival. A malformed
// timestamp fails the whole query rather than being silently skipped,
// since a dropped interval would make a conflicting slot look free.
package calendar
