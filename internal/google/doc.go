// Package google provides OAuth2 authentication and token storage for
// the Google APIs used by the application (Gmail and Calendar).
//
// Client credentials come from the GOOGLE_CLIENT_ID and
// GOOGLE_CLIENT_SECRET environment variables; the refresh token is
// cached on disk under the user cache directory after a one-time
// interactive authorization.
package google
