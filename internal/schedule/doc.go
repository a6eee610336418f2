// Package schedule fires scripts at computed times and keeps devices alive.
//
// A Schedule names a script, a next fire time and a repeat rule. The
// Calculator computes the next occurrence in the site's time zone, keeping
// the wall-clock hour for calendar units across daylight saving changes.
//
// The Scheduler is driven once per minute by the host:
//
//  1. every enabled device is heartbeated concurrently; a failed heartbeat
//     triggers a reconnect, and a successful reconnect replays the device's
//     startup status (last switch, dimmer and heater values written);
//  2. every enabled schedule that IsDue runs its script, with the outcome
//     journalled; a failing script does not stop the pass;
//  3. every enabled schedule is passed to UpdateSchedule so missed passes
//     self-heal.
//
// Repeat values by unit:
//
//	none         fire once, then disable (or delete if remove_after_done)
//	minute/hour  elapsed time
//	day          calendar days
//	day_of_week  weekday bit mask, Sunday = bit 0 (e.g. 0x3e = Mon..Fri)
//	month/year   calendar months/years
package schedule
