package shared

import "fmt"

// JobLockKey builds redis keys guarding cluster-wide job runs.
func JobLockKey(task string) string {
	return fmt.Sprintf("lock:%s", task)
}
