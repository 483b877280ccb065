// Package gmail wraps the Gmail API for the two operations the
// workflow needs: fetching the inbox as plain messages and sending
// drafted replies.
//
// Real inboxes contain a mix of encodings. Message bodies pass through
// a tolerant decode chain (base64url, standard base64, quoted-printable,
// RFC 2047 encoded words) before falling back to the raw payload, so a
// single oddly encoded message never breaks a fetch.
package gmail
