package shared

import "fmt"

// JobLockKey builds the redis key guarding a scheduled job.
func JobLockKey(job string) string {
	return fmt.Sprintf("condohub:jobs:%s:lock", job)
}

// DashboardVersionKey builds the redis key holding a condominium dashboard cache version.
func DashboardVersionKey(condominiumID int64) string {
	return fmt.Sprintf("condohub:dashboard:%d:version", condominiumID)
}
