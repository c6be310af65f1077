package service

import (
	"context"
	"time"

	"github.com/kitbuilder587/askweb/internal/llm"
)

// Pacer вызывается перед каждым скачиванием страницы.
type Pacer interface {
	Wait(ctx context.Context) error
}

type FixedDelay struct {
	Delay time.Duration
	Sleep llm.SleepFunc
}

func (p FixedDelay) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = llm.Sleep
	}
	return sleep(ctx, p.Delay)
}

type NoDelay struct{}

func (NoDelay) Wait(ctx context.Context) error {
	return ctx.Err()
}
