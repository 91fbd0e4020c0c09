package reconcile

import (
	"fmt"

	"github.com/A-tamer/hospital-management-system/model"
)

// The helpers below never modify their input slices; each returns a new one.

// Renumber returns a copy of followUps numbered 1..n in their current order.
func Renumber(followUps []model.FollowUp) []model.FollowUp {
	out := make([]model.FollowUp, len(followUps))
	for i, f := range followUps {
		f.Number = i + 1
		out[i] = f
	}
	return out
}

// AddFollowUp appends f as the next numbered follow-up.
func AddFollowUp(followUps []model.FollowUp, f model.FollowUp) []model.FollowUp {
	out := make([]model.FollowUp, 0, len(followUps)+1)
	out = append(out, Renumber(followUps)...)
	f.Number = len(out) + 1
	return append(out, f)
}

// RemoveFollowUp drops the follow-up with the given number and renumbers the
// rest contiguously from 1, keeping their relative order.
func RemoveFollowUp(followUps []model.FollowUp, number int) ([]model.FollowUp, error) {
	idx := -1
	for i, f := range followUps {
		if f.Number == number {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: follow-up #%d not found", ErrInvalidInput, number)
	}
	rest := make([]model.FollowUp, 0, len(followUps)-1)
	rest = append(rest, followUps[:idx]...)
	rest = append(rest, followUps[idx+1:]...)
	return Renumber(rest), nil
}

// AddSurgery appends s to surgeries.
func AddSurgery(surgeries []model.Surgery, s model.Surgery) []model.Surgery {
	out := make([]model.Surgery, 0, len(surgeries)+1)
	out = append(out, surgeries...)
	return append(out, s)
}

// RemoveSurgery drops the surgery at index (0-based).
func RemoveSurgery(surgeries []model.Surgery, index int) ([]model.Surgery, error) {
	if index < 0 || index >= len(surgeries) {
		return nil, fmt.Errorf("%w: surgery index %d out of range", ErrInvalidInput, index)
	}
	out := make([]model.Surgery, 0, len(surgeries)-1)
	out = append(out, surgeries[:index]...)
	return append(out, surgeries[index+1:]...), nil
}
