// Package logparse implements the grammars of the platform log drain: the
// syslog-style frame around every line, the key=value body convention, and
// the handful of platform messages the agent reacts to (formation scaling,
// dyno error codes). It also carries the identifier matchers used to turn
// request paths into low-cardinality routes.
//
// Every parser fails the whole input on the first mismatch. Nothing here
// logs; callers decide how loud a rejected line should be.
package logparse
