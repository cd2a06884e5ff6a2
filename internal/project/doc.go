// Package project resolves the project hierarchy of a build from its
// settings declaration.
//
// Resolution derives intermediate projects implicitly and assigns each
// project a physical directory. It never touches the filesystem. The
// resulting Tree is immutable; cross-project configuration goes through
// Tree.Configure instead of a global lookup.
package project
