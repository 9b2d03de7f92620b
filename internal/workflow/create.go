// pattern: Imperative Shell

package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wtsync/internal/folders"
	"wtsync/internal/git"
	"wtsync/internal/process"
	"wtsync/internal/worktree"
)

// CreateState is a step of the create-worktree workflow.
type CreateState int

const (
	SelectingRef CreateState = iota
	SelectingFolder
	Confirming
	Creating
	PostProcessing
	OfferOpen
	Done
)

func (s CreateState) String() string {
	switch s {
	case SelectingRef:
		return "selecting-ref"
	case SelectingFolder:
		return "selecting-folder"
	case Confirming:
		return "confirming"
	case Creating:
		return "creating"
	case PostProcessing:
		return "post-processing"
	case OfferOpen:
		return "offer-open"
	default:
		return "done"
	}
}

// newBranchValue is the pick value offering a new branch.
const newBranchValue = "\x00new-branch"

// CreateOptions preset answers. Empty fields are asked for interactively.
type CreateOptions struct {
	Dir       string // any path inside the repository
	Ref       string // existing ref to check out
	NewBranch string // create this branch instead (from Base, or HEAD)
	Base      string
	Path      string // target directory
	Yes       bool   // skip the confirmation step
	Open      *bool  // nil asks; false never opens
	NoCopy    bool
	NoHook    bool
}

// CreateResult describes the created worktree.
type CreateResult struct {
	Path     string
	Branch   string
	Ref      string
	Copied   []string
	Opened   bool
	Warnings []error
}

type createRun struct {
	o     *Orchestrator
	opts  CreateOptions
	main  string
	state CreateState

	ref        string
	newBranch  string
	folder     string
	lastFolder string
	res        CreateResult
}

// CreateWorktree runs the create-worktree workflow.
func (o *Orchestrator) CreateWorktree(ctx context.Context, opts CreateOptions) (CreateResult, error) {
	const action = "Create worktree"
	main, err := o.mainFolder(ctx, opts.Dir)
	if err != nil {
		return CreateResult{}, o.finish(action, err)
	}
	run := &createRun{o: o, opts: opts, main: main, ref: opts.Ref, newBranch: strings.TrimSpace(opts.NewBranch), folder: opts.Path}
	err = run.loop(ctx)
	if err == nil && len(run.res.Warnings) > 0 {
		err = &PartialError{Action: action, Failures: run.res.Warnings}
	}
	return run.res, o.finish(action, err)
}

func (r *createRun) loop(ctx context.Context) error {
	for r.state != Done {
		if ctx.Err() != nil && r.state < Creating {
			return ErrCancelled
		}
		r.o.logger.Debug("create worktree step", "state", r.state.String())
		var err error
		switch r.state {
		case SelectingRef:
			err = r.selectRef(ctx)
		case SelectingFolder:
			err = r.selectFolder(ctx)
		case Confirming:
			err = r.confirm(ctx)
		case Creating:
			err = r.create(ctx)
		case PostProcessing:
			r.postProcess(ctx)
			r.state = OfferOpen
		case OfferOpen:
			r.offerOpen(ctx)
			r.state = Done
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *createRun) selectRef(ctx context.Context) error {
	o := r.o
	switch {
	case r.newBranch != "":
		if err := o.validateNewBranch(ctx, r.main, r.newBranch); err != nil {
			return err
		}
	case r.ref != "":
	default:
		if o.prompt == nil {
			return invalid("ref", "no ref given")
		}
		options := append([]Option{{Label: "Create new branch…", Icon: "add", Value: newBranchValue}},
			RefOptions(o.refList(ctx, r.main))...)
		choice, err := o.prompt.Pick(ctx, PickRequest{
			Title:       "Select a branch or tag to create the worktree from",
			Placeholder: "branch, remote branch or tag",
			Options:     options,
			Default:     r.ref,
		})
		if err != nil {
			return err
		}
		if choice.Value == newBranchValue {
			name, err := o.prompt.Input(ctx, InputRequest{
				Title:    "New branch name",
				Prompt:   "Branch is created from " + baseLabel(r.opts.Base),
				Validate: o.branchNameValidator(ctx, r.main),
			})
			if err != nil {
				return err
			}
			r.newBranch = strings.TrimSpace(name)
		} else {
			r.ref = choice.Value
		}
	}
	r.state = SelectingFolder
	return nil
}

func baseLabel(base string) string {
	if base == "" {
		return "HEAD"
	}
	return base
}

func (r *createRun) branchName() string {
	if r.newBranch != "" {
		return r.newBranch
	}
	return r.ref
}

func (r *createRun) selectFolder(ctx context.Context) error {
	o := r.o
	if r.folder != "" && r.opts.Path != "" {
		if msg := ValidateTargetDir(r.folder); msg != "" {
			return invalid("path", "%s", msg)
		}
		r.state = Confirming
		return nil
	}
	if o.prompt == nil {
		return invalid("path", "no target directory given")
	}

	suggestion := r.lastFolder
	if suggestion == "" {
		suggestion = filepath.Join(o.cfg.WorktreeParent(r.main), worktree.DirName(r.branchName()))
	}
	path, err := o.prompt.Input(ctx, InputRequest{
		Title:     "Worktree folder",
		Prompt:    "Where should the worktree be created?",
		Value:     suggestion,
		Validate:  ValidateTargetDir,
		AllowBack: true,
	})
	if errors.Is(err, ErrBack) {
		r.lastFolder = suggestion
		r.ref, r.newBranch = "", ""
		r.state = SelectingRef
		return nil
	}
	if err != nil {
		return err
	}
	r.folder = path
	r.lastFolder = path
	r.state = Confirming
	return nil
}

// ValidateTargetDir returns "" when path can receive a new worktree.
func ValidateTargetDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "a folder is required"
	}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return "directory already exists: " + path
		}
		return "path exists and is not a directory: " + path
	}
	for parent := filepath.Dir(filepath.Clean(path)); ; parent = filepath.Dir(parent) {
		info, err := os.Stat(parent)
		if err == nil {
			if !info.IsDir() {
				return "not a directory: " + parent
			}
			return ""
		}
		if filepath.Dir(parent) == parent {
			return ""
		}
	}
}

func (r *createRun) confirm(ctx context.Context) error {
	abs, err := filepath.Abs(strings.TrimSpace(r.folder))
	if err != nil {
		return err
	}
	r.folder = abs
	if r.opts.Yes || r.o.prompt == nil {
		r.state = Creating
		return nil
	}
	what := r.ref
	if r.newBranch != "" {
		what = "new branch " + r.newBranch + " from " + baseLabel(r.opts.Base)
	}
	ok, err := r.o.prompt.Confirm(ctx, "Create worktree", fmt.Sprintf("Create a worktree for %s at %s?", what, abs), nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	r.state = Creating
	return nil
}

func (r *createRun) create(ctx context.Context) error {
	o := r.o
	var add git.AddOptions
	if r.newBranch != "" {
		add = git.AddOptions{Ref: r.opts.Base, NewBranch: r.newBranch}
		r.res.Branch = r.newBranch
	} else {
		plan := o.repo.ResolveRef(ctx, r.main, r.ref)
		add = plan.AddOptions()
		r.res.Branch = plan.Branch
	}
	r.res.Ref = r.ref

	err := o.progress.WithProgress(ctx, "Creating worktree "+filepath.Base(r.folder), false,
		func(ctx context.Context, report func(string)) error {
			report("git worktree add " + r.folder)
			return o.repo.AddWorktree(ctx, r.main, r.folder, add)
		})
	if err != nil {
		return err
	}
	r.res.Path = r.folder
	o.logger.Info("worktree created", "path", r.folder, "branch", r.res.Branch, "ref", r.ref)
	o.changed("create", r.main, r.folder)
	r.state = PostProcessing
	return nil
}

// postProcess copies configured files and runs the post-create command.
// Neither step undoes the worktree; problems become warnings.
func (r *createRun) postProcess(ctx context.Context) {
	o := r.o
	wc := o.cfg.Worktree

	if !r.opts.NoCopy && len(wc.CopyInclude) > 0 {
		var res CopyResult
		err := o.progress.WithProgress(ctx, "Copying files into the worktree", true,
			func(ctx context.Context, report func(string)) error {
				var err error
				res, err = CopyFiles(ctx, r.main, r.folder, wc.CopyInclude, wc.CopyExclude)
				report(fmt.Sprintf("%d file(s) copied", len(res.Copied)))
				return err
			})
		r.res.Copied = res.Copied
		r.res.Warnings = append(r.res.Warnings, res.Failures...)
		if IsCancelled(err) || errors.Is(err, context.Canceled) {
			o.logger.Info("file copy cancelled", "path", r.folder, "copied", len(res.Copied))
			return
		}
		if err != nil {
			r.res.Warnings = append(r.res.Warnings, fmt.Errorf("copy files: %w", err))
		}
	}

	if cmd := strings.TrimSpace(wc.PostCreateCommand); cmd != "" && !r.opts.NoHook && o.shell != nil {
		hookLog := o.logger.With("path", r.folder)
		err := o.progress.WithProgress(ctx, "Running post-create command", true,
			func(ctx context.Context, report func(string)) error {
				res, err := o.shell.RunShell(ctx, r.folder, cmd, func(l process.Line) {
					hookLog.Info("post-create output", "stream", string(l.Stream), "line", l.Text)
					report(l.Text)
				})
				if res.Cancelled {
					return ErrCancelled
				}
				return err
			})
		switch {
		case IsCancelled(err) || errors.Is(err, context.Canceled):
			o.logger.Info("post-create command cancelled", "path", r.folder)
		case err != nil:
			r.res.Warnings = append(r.res.Warnings, fmt.Errorf("post-create command: %w", err))
		}
	}
}

func (r *createRun) offerOpen(ctx context.Context) {
	o := r.o
	if o.folders != nil {
		if err := o.folders.RecordRecent(folders.Item{Path: r.folder, Type: folders.TypeFolder}); err != nil {
			o.logger.Warn("recent item not recorded", "path", r.folder, "error", err)
		}
	}
	if o.opener == nil || (r.opts.Open != nil && !*r.opts.Open) {
		o.info("Worktree created at " + r.folder)
		return
	}
	if r.opts.Open == nil {
		if o.prompt == nil {
			return
		}
		ok, err := o.prompt.Confirm(ctx, "Worktree created", "Open "+r.folder+" in a new window?", nil)
		if err != nil || !ok {
			return
		}
	}
	if err := o.opener.Open(ctx, r.folder, true); err != nil {
		r.res.Warnings = append(r.res.Warnings, fmt.Errorf("open: %w", err))
		return
	}
	r.res.Opened = true
}
