// Package shutdown turns the operator's termination signal into a one-way
// stop request shared by the daemon's run modes.
//
// Install registers for the platform interrupt signal exactly once per
// process and returns a Handle. The first signal (or an explicit Trigger)
// clears the handle's RunningFlag and then closes Done and cancels Context,
// so any code woken by the channel always observes the flag as stopped. Later
// signals are ignored.
package shutdown
