package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriorityScoreFreshIssue(t *testing.T) {
	now := time.Now().UTC()
	// One report, no upvotes, zero age: 2 + severity.
	assert.Equal(t, 3, PriorityScore(1, 1, now, 0, now))
	assert.Equal(t, 6, PriorityScore(1, 4, now, 0, now))
	assert.Equal(t, 7, PriorityScore(1, 5, now, 0, now))
}

func TestPriorityScoreAccumulates(t *testing.T) {
	now := time.Now().UTC()
	created := now.Add(-3 * 24 * time.Hour)
	// 3*2 + 4 + 3 + 5 = 18
	assert.Equal(t, 18, PriorityScore(3, 4, created, 5, now))
}

func TestPriorityScoreAgeFlooring(t *testing.T) {
	now := time.Now().UTC()
	// Partial days do not count.
	created := now.Add(-47 * time.Hour)
	assert.Equal(t, 1, DaysUnresolved(created, now))
	// Clock skew never yields negative age.
	assert.Equal(t, 0, DaysUnresolved(now.Add(time.Hour), now))
}

func TestPriorityLabelTiers(t *testing.T) {
	assert.Equal(t, "Low", PriorityLabel(0))
	assert.Equal(t, "Low", PriorityLabel(5))
	assert.Equal(t, "Medium", PriorityLabel(6))
	assert.Equal(t, "Medium", PriorityLabel(10))
	assert.Equal(t, "High", PriorityLabel(11))
	assert.Equal(t, "High", PriorityLabel(15))
	assert.Equal(t, "Critical", PriorityLabel(16))
	assert.Equal(t, "Critical", PriorityLabel(42))
}
