// Package filters contains the interfaces of the filters applied by the
// mirror routes, and the registry of their specifications.
//
// To create a filter, implement the Spec and Filter interfaces, typically
// in a subpackage, and register the spec in the registry used by the
// routing. The generic filters are in the builtin package, the HTML
// rewriting of the main site is in the htmlrewrite package.
package filters
