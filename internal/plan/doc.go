// Package plan models the install plan: the TOML document at a build tree
// root that names a project, its directory layout, and the artifacts to
// copy into an installation prefix.
//
// A plan is loaded, normalized (layout defaults, display-name derivation,
// component defaults), and validated before any other package touches it.
// The package also owns the build-configuration vocabulary
// (Debug/Release/MinSizeRel/RelWithDebInfo) and the @CONFIG@ placeholder
// expansion used for per-configuration artifact names.
package plan
