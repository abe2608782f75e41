// Package reconcile converges campaign location criteria on a desired set.
//
// For each campaign the engine computes the criteria to add (desired minus
// existing) and to remove (existing minus desired), submits them through a
// Mutator in bounded chunks, adds before removes, and folds per-chunk
// partial failures into a RunSummary. A campaign that already matches is
// skipped without any write, so a second run over an unchanged account
// issues nothing.
//
// The engine only talks to its collaborators through the Directory and
// Mutator interfaces. See package reconciletest for in-memory fakes.
package reconcile
