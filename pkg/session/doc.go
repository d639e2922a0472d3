/*
Package session carries state across runs.

A run always starts from fresh state. A session stores the final state of one
run as a snapshot and feeds it back as the initial values of the next, which
turns single runs into a multi-turn conversation. Access to one session is
serialized in-process and, with WithLocker, across replicas.
*/
package session
