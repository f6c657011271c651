// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package facematch defines the boundary to the external facial-similarity
service. The comparison algorithm itself (detection, encoding, distance
metric) lives behind the Comparer interface; this service only consumes a
matched/distance verdict.
*/
package facematch
