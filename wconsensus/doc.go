// Package wconsensus contains the core data model shared across
// the weft consensus packages: authorities, stake-weighted committees,
// rounds, and block references.
//
// The types here are deliberately small and free of behavior beyond
// ordering and threshold arithmetic, so that every other package
// can depend on wconsensus without pulling in any machinery.
package wconsensus
