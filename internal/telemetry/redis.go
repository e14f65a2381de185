package telemetry

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r and logs its commands at debug level under the given client name.
func MonitorRedis(r redis.UniversalClient, name string) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{log: slog.Default().With("redis", name)})
	return nil
}

type redisLog struct {
	log *slog.Logger
}

func (l redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			l.log.WarnContext(ctx, "redis: dial failed", "addr", addr, "error", err)
			return conn, err
		}
		l.log.InfoContext(ctx, "redis: connected", "network", network, "addr", addr)
		return conn, nil
	}
}

func (l redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		l.done(ctx, cmd.Name(), start, err)
		return err
	}
}

func (l redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		l.done(ctx, fmt.Sprintf("pipeline(%d)", len(cmds)), start, err)
		return err
	}
}

func (l redisLog) done(ctx context.Context, cmd string, start time.Time, err error) {
	if err != nil && !stderrors.Is(err, redis.Nil) {
		l.log.WarnContext(ctx, "redis: command failed", "cmd", cmd, "duration", time.Since(start), "error", err)
		return
	}
	l.log.DebugContext(ctx, "redis: command done", "cmd", cmd, "duration", time.Since(start))
}
