package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// key identifies one embedding: the same text embedded by another model or
// for another task type is a different vector.
type key struct {
	model string
	task  string
	hash  string
}

func newKey(modelName, taskType, text string) key {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return key{model: modelName, task: taskType, hash: hex.EncodeToString(sum[:])}
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
