/*
Package imap implements the synchronous IMAP client the mail-account
administration console uses to provision mailboxes, folders, quotas and
ACLs on an IMAP server.

Operations usually return a boolean value indicating whether the command
round-trip succeeded, with the classified reason for a failure available
through LastError. One Service drives exactly one connection and issues
strictly ordered commands, each correlated to its answer by a
client-generated tag. There is no internal concurrency: callers needing
parallel IMAP access create one Service per goroutine.

Please refer to https://tools.ietf.org/html/rfc3501 for the full
IMAP v4 rev1 RFC and to RFC 2088/2087/4314 for the quota and ACL
extensions used here.
*/
package imap
