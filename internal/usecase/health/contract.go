package health

import "context"

// DBPinger checks store connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// AIChecker checks the AI query-parser collaborator.
type AIChecker interface {
	HealthCheck(ctx context.Context) error
}
