package utils

import (
	"github.com/emirpasic/gods/sets"
	"github.com/emirpasic/gods/sets/hashset"
)

// NewSet 根据给定的元素创建hashset，重复的元素只保留一个
func NewSet[T comparable](values ...T) sets.Set {
	set := hashset.New()
	for _, value := range values {
		set.Add(value)
	}
	return set
}
