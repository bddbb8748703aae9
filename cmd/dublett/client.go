package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"dublett/internal/api"
	"dublett/internal/config"
)

const (
	autostartTimeout   = 3 * time.Second
	autostartPoll      = 100 * time.Millisecond
	pingProbeTimeout   = 500 * time.Millisecond
	pingAttemptTimeout = 200 * time.Millisecond
)

// withClient runs fn against the API, starting a background server first if
// none is listening. An autostarted server is torn down when fn returns.
func withClient(cfg *config.Config, tenant string, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)
	if tenant != "" {
		client.SetTenant(tenant)
	}

	stop, err := autostartIfNeeded(cfg, client)
	if err != nil {
		return err
	}
	if stop != nil {
		defer stop()
	}
	return fn(client)
}

func autostartIfNeeded(cfg *config.Config, client *api.Client) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingProbeTimeout)
	err := client.Ping(ctx)
	cancel()
	if err == nil {
		return nil, nil
	}

	proc, err := spawnServer(cfg)
	if err != nil {
		return nil, err
	}
	stop := func() {
		_ = proc.Process.Kill()
		_ = proc.Wait()
	}

	if err := awaitHealthy(client); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

func spawnServer(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	proc := exec.Command(exe, "srv")
	proc.Env = append(os.Environ(),
		"DUBLETT_DB="+cfg.DBPath,
		"DUBLETT_API_URL="+cfg.APIURL,
		"DUBLETT_BLOB_ROOT="+cfg.BlobRoot,
	)
	proc.Stdout = io.Discard
	proc.Stderr = io.Discard

	if err := proc.Start(); err != nil {
		return nil, err
	}
	return proc, nil
}

func awaitHealthy(client *api.Client) error {
	deadline := time.Now().Add(autostartTimeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), pingAttemptTimeout)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		// Anything other than a refused connection means the port is
		// answering but unhealthy; surface that instead of spinning.
		var netErr *net.OpError
		if !errors.As(err, &netErr) {
			return err
		}
		time.Sleep(autostartPoll)
	}
	return errors.New("server did not start in time")
}
