package idxmigrate

import (
	"context"
	"fmt"
	"time"
)

// Health checks the source, the target and the stage store.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}

	var err error
	if status.Status != "ok" {
		err = fmt.Errorf("health %s", status.Status)
	}
	c.obs.observe("health", start, err)
	return status
}
