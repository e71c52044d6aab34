// Package core defines the shared domain model of councilmesh: participants,
// recommendations, decisions, meeting transcripts, memory records, the error
// taxonomy and the collaborator interfaces the rest of the module builds on.
// It has no dependencies on concrete collaborator implementations so that the
// orchestration logic stays testable with in-process doubles.
package core
