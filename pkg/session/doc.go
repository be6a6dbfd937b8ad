/*
Package session guards project records.

A Manager sits in front of any ProjectStore and runs each load, save and
delete under a per-project lock, held across replicas too when a
DistributedLocker is configured. Update gives callers an atomic
read-modify-write of one record.
*/
package session
