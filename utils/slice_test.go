package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4, 5}, func(n int) bool { return n%2 == 0 })
	assert.Equal(t, []int{2, 4}, even)

	assert.Empty(t, Filter(nil, func(n int) bool { return true }))
}

func TestMap(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(n int) int { return n * 2 })
	assert.Equal(t, []int{2, 4, 6}, doubled)
}

func TestGroupBy(t *testing.T) {
	grouped := GroupBy([]string{"reception", "workshop", "afterparty"}, func(s string) int { return len(s) })
	assert.Equal(t, map[int][]string{
		8:  {"workshop"},
		9:  {"reception"},
		10: {"afterparty"},
	}, grouped)
}
