/*
Package crypto provides the TLS configurations used when talking to IMAP
servers. One strict client config serves both connection modes: implicit
TLS at connect time and an in-place STARTTLS upgrade. Deployments with a
private CA can hand in an additional root certificate that is trusted on
top of the system pool.
*/
package crypto
