// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wtsync/internal/cache"
	"wtsync/internal/instance"
	"wtsync/internal/logging"
	"wtsync/internal/watch"
	"wtsync/internal/web"
)

// runServe runs the daemon: one per data directory, guarded by the instance
// lock. It watches registered repositories, keeps both cache scopes warm and
// serves the HTTP API until ctx is cancelled.
func (b *builder) runServe(ctx context.Context, args []string) error {
	fs := newFlags("serve")
	bind := fs.String("bind", "", "listen address (default from config)")
	port := fs.IntP("port", "p", 0, "listen port, 0 picks a free one (default from config)")
	workspace := workspaceFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	dataDir := b.dataDir()
	fl, err := instance.Lock(dataDir)
	if err != nil {
		return err
	}
	defer instance.Cleanup(dataDir, fl)

	return b.withEnv(workspace(), func(env *Env) error {
		logger := env.Logger
		logger.Info("daemon starting", "data_dir", dataDir)

		watcher := watch.NewRegistry(env.Bus, env.Logs.For(logging.ScopeWatch))
		defer watcher.Close()

		svc := env.Cache(watcher)
		if fs.Changed("workspace") {
			if err := svc.SetWorkspaceFolders(ctx, workspace()); err != nil {
				logger.Warn("workspace folders not resolved", "error", err)
			}
		}
		svc.Start()
		// Warm both scopes; failures are logged by the cache.
		go func() {
			for _, scope := range cache.Scopes {
				_ = svc.Refresh(ctx, scope)
			}
		}()

		webCfg := web.Config{Bind: env.Config.Web.Bind, Port: env.Config.Web.Port}
		if fs.Changed("bind") {
			webCfg.Bind = *bind
		}
		if fs.Changed("port") {
			webCfg.Port = *port
		}
		server := web.New(webCfg, web.Deps{
			Cache:   svc,
			Folders: env.Folders,
			Bus:     env.Bus,
			Logs:    env.Logs.Entries(),
		}, env.Logs)

		ln, err := server.Listen()
		if err != nil {
			return err
		}
		if err := instance.WritePort(dataDir, server.Addr()); err != nil {
			logger.Error("failed to write port file", "error", err)
		}
		fmt.Fprintf(env.Stdout, "wtsync daemon listening on http://%s\n", server.Addr())

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- server.Serve(ln)
		}()

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("web server error", "error", err)
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("web server shutdown error", "error", err)
		}
		logger.Info("daemon stopped")
		return nil
	})
}
