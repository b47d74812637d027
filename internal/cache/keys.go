package cache

import "fmt"

func KeySnapshot(stopID string) string {
	return fmt.Sprintf("snapshot:%s", stopID)
}
