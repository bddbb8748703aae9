package main

import (
	"context"
	"errors"
	"net"

	"dublett/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized", "forbidden":
			lines = append(lines, "hint: verify DUBLETT_ADMIN_TOKEN and the --tenant / DUBLETT_TENANT setting.")
		case "invalid_argument":
			if apiErr.Status == 400 {
				lines = append(lines, "hint: pass the tenant with --tenant or DUBLETT_TENANT.")
			}
		case "conflict":
			lines = append(lines, "hint: another worker holds this group; retry shortly or run: dublett admin reap")
		case "resource_exhausted":
			lines = append(lines, "hint: retry shortly or reduce concurrent uploads.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify DUBLETT_API_URL points to a dublett server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase DUBLETT_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a dublett server is running at DUBLETT_API_URL.",
			"hint: start a local server manually with: dublett srv",
			"hint: you can increase DUBLETT_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
