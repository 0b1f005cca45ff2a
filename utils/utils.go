package utils

import (
	"log"
	"os"
)

func FileExist(filePath string) bool {
	var err error

	if _, err = os.Stat(filePath); os.IsNotExist(err) {
		return false
	}

	if err != nil {
		log.Panic(err)
	}

	return true
}

func CreateDirIfNotExist(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return err
		}
	}

	return nil
}

// IntersectIDs returns the ids in 'ids' that are also in 'allowed', keeping the order of 'ids'
func IntersectIDs(ids []uint, allowed []uint) []uint {
	allowedSet := make(map[uint]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	result := []uint{}
	for _, id := range ids {
		if allowedSet[id] {
			result = append(result, id)
		}
	}

	return result
}
