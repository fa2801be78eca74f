package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Append-only archive of terminal workflow runs
			CREATE TABLE workflow_runs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('succeeded', 'failed', 'skipped')),
				epoch BIGINT NOT NULL,
				trigger_data JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				ended_at TIMESTAMP WITH TIME ZONE,
				retry_count INT NOT NULL DEFAULT 0,
				last_error TEXT
			);

			CREATE INDEX idx_workflow_runs_name ON workflow_runs(workflow_name);
			CREATE INDEX idx_workflow_runs_epoch ON workflow_runs(epoch);
			CREATE INDEX idx_workflow_runs_ended_at ON workflow_runs(ended_at);
		`,
		2: `
			-- Observed engagement samples feeding the scheduling predictor
			CREATE TABLE engagement_samples (
				id BIGSERIAL PRIMARY KEY,
				platform VARCHAR(50) NOT NULL,
				weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
				hour SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
				rate DOUBLE PRECISION NOT NULL CHECK (rate BETWEEN 0 AND 1),
				observed_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_engagement_samples_platform ON engagement_samples(platform);
			CREATE INDEX idx_engagement_samples_bucket ON engagement_samples(platform, weekday, hour);
		`,
	}
}
