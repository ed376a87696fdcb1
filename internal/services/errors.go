package services

import "errors"

// Sentinel errors returned by the workflow stages. Handlers map these to
// HTTP status codes at the boundary.
var (
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrAnalysisNotFound   = errors.New("first pass analysis not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrSecondPassNotFound = errors.New("second pass analysis not found")

	// ErrReviewNotApproved gates the second pass: deep analysis never
	// runs without human sign-off
	ErrReviewNotApproved = errors.New("review must be approved before second pass analysis")

	// ErrSecondPassNotCompleted gates report generation
	ErrSecondPassNotCompleted = errors.New("second pass analysis must be completed before report generation")

	// ErrAnalysisInProgress is returned to a trigger that lost the claim
	// race: exactly one caller runs the completion for a given record
	ErrAnalysisInProgress = errors.New("analysis is already in progress")

	ErrInvalidDecision = errors.New("decision must be approved, rejected, or needs_revision")
)
