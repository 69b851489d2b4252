package hash

import "fmt"

func errKeyNotFound(key int64) error {
	return fmt.Errorf("no entry with key %d was found", key)
}

func errDuplicateOrFull(key int64) error {
	return fmt.Errorf("could not insert key %d: duplicate key, or table is at capacity", key)
}
