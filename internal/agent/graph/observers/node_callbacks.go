package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"

	logx "github.com/hr-benefits-assistant/server/pkg/logger"
)

type nodeStartKey struct{ name string }

// NewNodeCallbacks logs the duration of every graph node.
func NewNodeCallbacks() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if info == nil || info.Component != compose.ComponentOfLambda {
				return ctx
			}
			return context.WithValue(ctx, nodeStartKey{info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			logNode(ctx, info, nil)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logNode(ctx, info, err)
			return ctx
		}).
		Build()
}

func logNode(ctx context.Context, info *einocb.RunInfo, err error) {
	if info == nil || info.Component != compose.ComponentOfLambda {
		return
	}
	ev := logx.Debug()
	if err != nil {
		ev = logx.Error().Err(err)
	}
	if start, ok := ctx.Value(nodeStartKey{info.Name}).(time.Time); ok {
		ev = ev.Dur("elapsed", time.Since(start))
	}
	ev.Str("node", info.Name).Msg("node finished")
}
