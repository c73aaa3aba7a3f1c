/*
Package session orchestrates access to persisted scenes.

A Manager serializes operations on the same scene name with a reference
counted in-process lock and, when configured, a distributed lock so several
replicas sharing one store do not interleave their writes.
*/
package session
