package store

// Job run history queries
const (
	queryInsertJobRun = `
		INSERT INTO job_runs (job_id, pool_id, workload, status, result, error, submitted_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryPurgeJobRuns = `DELETE FROM job_runs WHERE finished_at < ?`
)
