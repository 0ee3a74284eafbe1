package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/realaaravdas/Limelight3-XNav/xnavclient"
)

// watch prints snapshots until ctx ends or the configured count is
// reached. In follow mode a print is driven by new-targets deliveries,
// otherwise by the interval ticker.
func watch(ctx context.Context, client *xnavclient.Client, cfg *CLIConfig, out io.Writer) error {
	printed := 0
	emit := func() bool {
		printSnapshot(out, client)
		printed++
		return cfg.Count == 0 || printed < cfg.Count
	}

	if cfg.Follow {
		// Deliveries land on the listener goroutine; hand them to this
		// one through a coalescing channel so printing never blocks the
		// fabric.
		notify := make(chan struct{}, 1)
		client.OnNewTargets(func([]xnavclient.TagResult) {
			select {
			case notify <- struct{}{}:
			default:
			}
		})
		defer client.OnNewTargets(nil)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-notify:
				if !emit() {
					return nil
				}
			}
		}
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	if !emit() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !emit() {
				return nil
			}
		}
	}
}

// printSnapshot writes one assembled snapshot as an indented block:
// status line, pose, offset point, then a target table with the
// primary marked.
func printSnapshot(out io.Writer, client *xnavclient.Client) {
	status := client.Status()
	pose := client.RobotPose()
	offset := client.OffsetPoint()
	primary := client.PrimaryTarget()
	targets := client.AllTargets()

	_, _ = fmt.Fprintf(out, "%s  connected=%v status=%s fps=%.1f latency=%.1fms targets=%d\n",
		time.Now().Format("15:04:05.000"), status.Connected, status.Status,
		status.FPS, status.LatencyMs, status.NumTargets)

	if pose.Valid {
		_, _ = fmt.Fprintf(out, "  pose    x=%.2f y=%.2f z=%.2f roll=%.1f pitch=%.1f yaw=%.1f\n",
			pose.X, pose.Y, pose.Z, pose.Roll, pose.Pitch, pose.YawDeg)
	} else {
		_, _ = fmt.Fprintln(out, "  pose    (invalid)")
	}

	if offset.Valid {
		_, _ = fmt.Fprintf(out, "  offset  tag=%d tx=%.2f ty=%.2f direct=%.2fm\n",
			offset.TagID, offset.Tx, offset.Ty, offset.DirectDistance)
	} else {
		_, _ = fmt.Fprintln(out, "  offset  (invalid)")
	}

	if len(targets) == 0 {
		_, _ = fmt.Fprintln(out, "  no targets")
		return
	}

	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  id\ttx\tty\tdist\tyaw\t")
	for _, tr := range targets {
		mark := ""
		if tr.ID == primary.ID {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "  %d%s\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			tr.ID, mark, tr.Tx, tr.Ty, tr.Distance, tr.Yaw)
	}
	_ = w.Flush()
}
