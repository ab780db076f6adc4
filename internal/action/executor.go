package action

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lonitor/lonitor/internal/errors"
	"github.com/lonitor/lonitor/internal/logger"
	"github.com/lonitor/lonitor/internal/model"
)

// DefaultTimeout bounds a single action.
const DefaultTimeout = 15 * time.Second

// ProcessKiller terminates a listed process.
type ProcessKiller interface {
	Kill(pid int32) error
}

// Deps are the OS mechanisms the executor drives. Nil fields make the
// corresponding action report Unsupported.
type Deps struct {
	Power   PowerControl
	RAM     RAMCache
	Storage StorageCache
	Procs   ProcessKiller
}

// Executor runs privileged actions synchronously. Every call appends exactly
// one record to the Log before returning, success or not.
type Executor struct {
	log     *Log
	deps    Deps
	timeout time.Duration
	now     func() time.Time
}

func NewExecutor(log *Log, deps Deps, timeout time.Duration) *Executor {
	if log == nil {
		log = NewLog()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{log: log, deps: deps, timeout: timeout, now: time.Now}
}

func (e *Executor) Log() *Log { return e.log }

func (e *Executor) SetPowerProfile(ctx context.Context, p model.PowerProfile) (model.ActionRecord, error) {
	params := map[string]string{"profile": string(p)}
	return e.run(ctx, model.ActionSetPowerProfile, params, func(ctx context.Context) (string, error) {
		if _, err := model.ParsePowerProfile(string(p)); err != nil {
			return "", err
		}
		if e.deps.Power == nil {
			return "", unsupported("power profiles")
		}
		if err := e.deps.Power.SetProfile(ctx, p); err != nil {
			return "", err
		}
		return "Power mode set to " + string(p), nil
	})
}

func (e *Executor) ClearRAMCache(ctx context.Context) (model.ActionRecord, error) {
	return e.run(ctx, model.ActionClearRAMCache, nil, func(ctx context.Context) (string, error) {
		if e.deps.RAM == nil {
			return "", unsupported("RAM cache control")
		}
		if err := e.deps.RAM.Drop(ctx); err != nil {
			return "", err
		}
		return "RAM cache cleared", nil
	})
}

func (e *Executor) ClearStorageCache(ctx context.Context) (model.ActionRecord, error) {
	return e.run(ctx, model.ActionClearStorageCache, nil, func(ctx context.Context) (string, error) {
		if e.deps.Storage == nil {
			return "", unsupported("storage cache control")
		}
		res, err := e.deps.Storage.Clear(ctx)
		if err != nil {
			return "", err
		}
		return "Storage caches cleared: " + res.String(), nil
	})
}

func (e *Executor) KillProcess(ctx context.Context, pid int32) (model.ActionRecord, error) {
	params := map[string]string{"pid": strconv.Itoa(int(pid))}
	return e.run(ctx, model.ActionKillProcess, params, func(context.Context) (string, error) {
		if e.deps.Procs == nil {
			return "", unsupported("process control")
		}
		if err := e.deps.Procs.Kill(pid); err != nil {
			return "", err
		}
		return fmt.Sprintf("Process %d terminated", pid), nil
	})
}

func (e *Executor) run(
	ctx context.Context,
	kind model.ActionKind,
	params map[string]string,
	fn func(ctx context.Context) (string, error),
) (rec model.ActionRecord, err error) {
	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var detail string
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = errors.New().WithData(errors.ErrInternal, fmt.Sprintf("action panic: %v", p))
			}
		}()
		detail, err = fn(ctx)
	}()

	if err != nil && ctx.Err() == context.DeadlineExceeded && !errors.HasCode(err, errors.ErrTimeout) {
		err = errors.New().Wrap(errors.ErrTimeout, err)
	}
	if err != nil {
		detail = err.Error()
	}

	rec = e.log.Append(model.ActionRecord{
		ID:         uuid.NewString(),
		Timestamp:  start,
		Duration:   e.now().Sub(start),
		Kind:       kind,
		Parameters: params,
		Outcome:    model.OutcomeOf(err),
		Detail:     detail,
	})

	if err != nil {
		logger.WarnWithCode(err).
			Str("action", string(kind)).
			Uint64("seq", rec.Seq).
			Msg("action failed")
	} else {
		logger.Info().
			Str("action", string(kind)).
			Uint64("seq", rec.Seq).
			Dur("took", rec.Duration).
			Msg(detail)
	}
	return rec, err
}

func unsupported(what string) error {
	return errors.New().WithMessage(errors.ErrUnsupported, "no "+what+" on this host")
}
