// Package schedule contains the pure time arithmetic behind meeting
// scheduling: overlap detection against busy intervals, best-effort
// extraction of a meeting time from free-form email text, and the search
// for an alternative slot within the work-hour window.
//
// Nothing in this package performs I/O. All functions are deterministic
// over their inputs so they can be tested without a calendar backend.
package schedule
