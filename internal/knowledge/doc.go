// Package knowledge presents stored documents and task records as a single
// navigable tree.
//
// The tree has three fixed roots (actions, health, projects). Under the
// actions root, one virtual folder exists per task referenced by a stored
// item; when the task itself is gone the folder is kept as an orphan so the
// documents stay reachable. Each existing task also contributes a generated
// text document rendering its diary.
//
// Everything here is a pure function of its arguments. Callers load the
// snapshot, pass it in, and decide whether to memoize the results.
package knowledge
