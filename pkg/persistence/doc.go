/*
Package persistence writes edited documents to a ports.ProjectStore without
blocking the editor.

A Gate receives snapshots that were already serialized on the session's
control goroutine, keeps only the latest one and writes it after a trailing
quiet period. Store decorators (encryption, redaction) live in the
middleware subpackage.
*/
package persistence
