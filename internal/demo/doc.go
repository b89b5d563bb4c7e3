// Package demo wires the sample services used by `weave run`.
//
// It registers three groups of operations on an engine:
//
//	concert  perform, plus showAdmiration introduced as a capability
//	cd       playTrack(integer)
//	calc     add, sub, mul, div over two numerics
//
// The advice applied to them is declared in aspects.cue and resolved by
// name against the Catalog. Advice that keeps state, such as TrackCounter,
// owns that state and locks it itself.
package demo
