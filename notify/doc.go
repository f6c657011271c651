// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify is the boundary to out-of-band message delivery. The auth
flow uses it exactly once per successful facial step, to hand the OTP
plaintext to the voter. Delivery failure is a hard error for that step.
*/
package notify
