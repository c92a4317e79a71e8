package game

import "fmt"

// NotFoundError indicates the room code does not resolve to a live match.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("room %s not found", e.Code)
}

// StateError indicates the match is in the wrong status for the requested
// operation, or the caller is not allowed to perform it right now. Duplicate
// answers and question index mismatches are state errors too.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

// CapacityError indicates the room already holds the maximum player count.
type CapacityError struct {
	Code       string
	MaxPlayers int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("room %s is full (max %d players)", e.Code, e.MaxPlayers)
}

// ValidationError indicates invalid input, such as an empty question set.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
