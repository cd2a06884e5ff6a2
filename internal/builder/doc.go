/*
Package builder applies build scripts to a task registry.

It is the bridge between the static declarations produced by a config.Loader
and the registry the dag package plans from. Applying a build is a
multi-phase process:

 1. Project walk: projects are visited root first, in project tree order, so
    a parent's cross-project blocks are registered before the child's own
    script runs.

 2. Plugin pre-processing: the plugins a script lists are applied to it
    before any of its declarations are registered.

 3. Registration: rules come first so they see every task the script
    declares, followed by tasks and `named` extensions. Cross-project blocks
    are routed through project.Tree.Configure.

Lazy tasks are registered but never configured here.
*/
package builder
