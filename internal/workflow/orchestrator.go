// pattern: Imperative Shell

// Package workflow sequences prompts, git operations and follow-up side
// effects for every user-facing action. Orchestrator methods are the error
// boundary: they log the full error, notify a truncated summary and keep
// cancellation silent.
package workflow

import (
	"context"
	"errors"
	"path/filepath"

	"wtsync/internal/cache"
	"wtsync/internal/config"
	"wtsync/internal/events"
	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/logging"
	"wtsync/internal/process"
)

// ShellRunner runs the post-create command.
type ShellRunner interface {
	RunShell(ctx context.Context, dir, command string, onLine func(process.Line)) (process.Result, error)
}

// RefCache is the part of the cache service workflows use.
type RefCache interface {
	RefList(mainFolder string) ([]git.RefRecord, bool)
	StoreRefList(mainFolder string, refs []git.RefRecord) error
	Invalidate(scope cache.Scope, root string)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Repo     *git.Repo
	Shell    ShellRunner
	Cache    RefCache
	Folders  *folders.Registry
	Prompter Prompter
	Notifier Notifier
	Progress Progress
	Opener   Opener
	Bus      *events.Bus
	Config   config.Config
	Logger   *logging.ScopedLogger

	// BackupDir receives branch bundles written before a forced delete.
	// Empty uses a directory under os.TempDir.
	BackupDir string
}

// Orchestrator runs workflows.
type Orchestrator struct {
	repo     *git.Repo
	shell    ShellRunner
	cache    RefCache
	folders  *folders.Registry
	prompt   Prompter
	notify   Notifier
	progress Progress
	opener   Opener
	bus      *events.Bus
	cfg      config.Config
	logger   *logging.ScopedLogger

	backupDir string
}

// New creates an Orchestrator. Notifications below cfg.Notify.MinLevel are
// dropped.
func New(d Deps) *Orchestrator {
	if d.Logger == nil {
		d.Logger = logging.NopLogger()
	}
	if d.Progress == nil {
		d.Progress = NoProgress{}
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if min, err := ParseLevel(d.Config.Notify.MinLevel); err == nil {
		notifier = MinLevel(notifier, min)
	}
	return &Orchestrator{
		repo:     d.Repo,
		shell:    d.Shell,
		cache:    d.Cache,
		folders:  d.Folders,
		prompt:   d.Prompter,
		notify:   notifier,
		progress: d.Progress,
		opener:   d.Opener,
		bus:      d.Bus,
		cfg:      d.Config,
		logger:   d.Logger,

		backupDir: d.BackupDir,
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(Level, string) {}

// finish is the error boundary shared by all workflows. It returns ErrCancelled for
// cancellation, the validation error as is, and a *Error otherwise.
func (o *Orchestrator) finish(action string, err error) error {
	if err == nil {
		return nil
	}
	if IsCancelled(err) || errors.Is(err, ErrBack) || errors.Is(err, context.Canceled) {
		o.logger.Debug("action cancelled", "action", action)
		return ErrCancelled
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		o.logger.Info("action rejected", "action", action, "reason", verr.Error())
		o.notify.Notify(LevelError, verr.Error())
		return err
	}

	var perr *PartialError
	if errors.As(err, &perr) {
		o.logger.Warn("action partially failed", "action", action, "error", err)
		o.notify.Notify(LevelWarn, Truncate(perr.Error(), o.maxErrorLength()))
		return err
	}

	o.logger.Error("action failed", "action", action, "error", err)
	werr := &Error{Action: action, Err: err}
	o.notify.Notify(LevelError, action+" failed: "+Truncate(err.Error(), o.maxErrorLength()))
	return werr
}

func (o *Orchestrator) maxErrorLength() int {
	if n := o.cfg.Notify.MaxErrorLength; n > 0 {
		return n
	}
	return config.DefaultMaxErrorLength
}

// changed invalidates the repository root in both cache scopes and announces
// the mutation.
func (o *Orchestrator) changed(action, root, path string) {
	if o.cache != nil {
		for _, scope := range cache.Scopes {
			o.cache.Invalidate(scope, root)
		}
	}
	o.bus.Publish(events.WorktreeChanged{Action: action, Root: root, Path: path})
}

// mainFolder resolves dir's repository or fails validation.
func (o *Orchestrator) mainFolder(ctx context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	main := o.repo.MainFolder(ctx, abs)
	if main == "" {
		if ctx.Err() != nil {
			return "", ErrCancelled
		}
		return "", invalid("path", "%s is not inside a git repository", abs)
	}
	return main, nil
}

func (o *Orchestrator) info(msg string) {
	o.notify.Notify(LevelInfo, msg)
}
