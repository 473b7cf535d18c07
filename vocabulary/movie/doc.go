// Package movie defines the closed graph vocabulary for the CineGraph movie domain.
//
// Every label, relationship type, property, filter operator, aggregation function
// and sort direction that may appear in a query plan is declared here. Nothing in
// this package is derived from user input; plan validation and query compilation
// treat these sets as the only admissible literals.
//
// # Graph Shape
//
//	Director -[:DIRECTED]->   Movie
//	Actor    -[:ACTED_IN]->   Movie
//	Movie    -[:BELONGS_TO]-> Genre
//	Movie    -[:EXPLORES]->   Theme
//	Movie    -[:WON]->        Award
//
// # Canonical Properties
//
// Each label has one canonical property holding the stored display name of a
// node: title for Movie, name for every other label. Entity resolution and the
// describe/path templates match against the canonical property only.
package movie
