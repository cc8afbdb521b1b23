package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: 20, Offset: 0}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: 100, Offset: 0}, Page{Limit: 500, Offset: -3}.Normalize())
	assert.Equal(t, Page{Limit: 5, Offset: 10}, Page{Limit: 5, Offset: 10}.Normalize())
}

func TestTrim(t *testing.T) {
	items, info := Trim([]int{1, 2, 3}, Page{Limit: 2})
	assert.Equal(t, []int{1, 2}, items)
	assert.True(t, info.HasMore)

	items, info = Trim([]int{1}, Page{Limit: 2})
	assert.Equal(t, []int{1}, items)
	assert.False(t, info.HasMore)
}
