// Package monitor polls monitored elements and records their values.
//
// Each minute the host runs one Pass. Every enabled, monitored switch or
// sensor whose next poll time is due or past is force-read through its
// device Controller and stored as a Sample in SQLite, with a copy sent to
// InfluxDB when a Mirror is configured. The next poll is then set to now
// plus the element's interval, rounded up to whole minutes.
//
// An element with no next poll time is polled on the next pass.
package monitor
