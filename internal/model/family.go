package model

import (
	"errors"
	"fmt"
)

// DefaultThresholds are the clustering thresholds for levels one through four.
var DefaultThresholds = ThresholdSet{85, 75, 65, 55}

// ErrInvalidThresholds is returned when a threshold set cannot drive a cascade.
var ErrInvalidThresholds = errors.New("invalid threshold set")

// ThresholdSet holds one similarity percentage per clustering level, strictly descending.
type ThresholdSet []int

// Validate checks that the set is non-empty, within (0,100] and strictly descending.
func (ts ThresholdSet) Validate() error {
	if len(ts) == 0 {
		return fmt.Errorf("%w: at least one level is required", ErrInvalidThresholds)
	}
	for i, t := range ts {
		if t <= 0 || t > 100 {
			return fmt.Errorf("%w: level %d threshold %d out of range", ErrInvalidThresholds, i+1, t)
		}
		if i > 0 && t >= ts[i-1] {
			return fmt.Errorf("%w: level %d threshold %d is not below %d", ErrInvalidThresholds, i+1, t, ts[i-1])
		}
	}
	return nil
}

// FamilyAssignment maps an original description to its master at every level.
type FamilyAssignment struct {
	Description string
	Masters     []string
}

// Master returns the family master at the 1-based level.
func (fa FamilyAssignment) Master(level int) string {
	if level < 1 || level > len(fa.Masters) {
		return ""
	}
	return fa.Masters[level-1]
}
