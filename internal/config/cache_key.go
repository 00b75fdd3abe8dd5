package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPoolKey returns the cache key for an exam's eligible question pool.
func (r *CacheKeyStruct) ExamPoolKey(examID string) string {
	return fmt.Sprintf("exam:%s:pool", examID)
}

var CacheKey = NewCacheKeyStruct()
