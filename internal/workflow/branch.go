// pattern: Imperative Shell

package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wtsync/internal/git"
	"wtsync/internal/worktree"
)

// RenameBranch renames oldName (the current branch of dir when empty) to
// newName (asked for when empty).
func (o *Orchestrator) RenameBranch(ctx context.Context, dir, oldName, newName string) error {
	return o.finish("Rename branch", o.renameBranch(ctx, dir, oldName, newName))
}

func (o *Orchestrator) renameBranch(ctx context.Context, dir, oldName, newName string) error {
	main, err := o.mainFolder(ctx, dir)
	if err != nil {
		return err
	}
	if oldName == "" {
		oldName = o.repo.CurrentBranch(ctx, dir)
		if oldName == "" {
			return invalid("branch", "HEAD is detached; name the branch to rename")
		}
	}
	if newName == "" {
		if o.prompt == nil {
			return invalid("name", "no new name given")
		}
		newName, err = o.prompt.Input(ctx, InputRequest{
			Title:    "Rename branch " + oldName,
			Value:    oldName,
			Validate: o.branchNameValidator(ctx, main),
		})
		if err != nil {
			return err
		}
	}
	newName = strings.TrimSpace(newName)
	if err := o.validateNewBranch(ctx, main, newName); err != nil {
		return err
	}
	if err := o.repo.RenameBranch(ctx, dir, oldName, newName); err != nil {
		return err
	}
	o.logger.Info("branch renamed", "from", oldName, "to", newName)
	o.changed("rename-branch", main, "")
	return nil
}

// DeleteBranchOptions controls DeleteBranch.
type DeleteBranchOptions struct {
	Dir   string
	Name  string // asked for when empty
	Force bool   // delete even when unmerged, without asking
}

// DeleteBranchResult reports the backup written before a forced delete.
type DeleteBranchResult struct {
	Name   string
	Forced bool
	Backup string
}

// DeleteBranch deletes a local branch. An unmerged branch is only deleted
// after confirmation, and is first saved to a bundle when backups are
// enabled.
func (o *Orchestrator) DeleteBranch(ctx context.Context, opts DeleteBranchOptions) (DeleteBranchResult, error) {
	res, err := o.deleteBranch(ctx, opts)
	return res, o.finish("Delete branch", err)
}

func (o *Orchestrator) deleteBranch(ctx context.Context, opts DeleteBranchOptions) (DeleteBranchResult, error) {
	main, err := o.mainFolder(ctx, opts.Dir)
	if err != nil {
		return DeleteBranchResult{}, err
	}
	name := opts.Name
	if name == "" {
		if o.prompt == nil {
			return DeleteBranchResult{}, invalid("branch", "no branch given")
		}
		var options []Option
		for _, opt := range RefOptions(o.repo.ListRefs(ctx, main, git.Heads, git.PickerFields)) {
			if !strings.Contains(opt.Description, "checked out at") {
				options = append(options, opt)
			}
		}
		choice, err := o.prompt.Pick(ctx, PickRequest{Title: "Select the branch to delete", Options: options})
		if err != nil {
			return DeleteBranchResult{}, err
		}
		name = choice.Value
	}
	res := DeleteBranchResult{Name: name}

	err = o.progress.WithProgress(ctx, "Deleting branch "+name, true, func(ctx context.Context, _ func(string)) error {
		// Always try the safe delete first so an unmerged branch is backed
		// up before it is forced.
		err := o.repo.DeleteBranch(ctx, main, name, false)
		if err == nil || !git.IsNotFullyMerged(err) {
			return err
		}
		if !opts.Force {
			if o.prompt == nil {
				return invalid("branch", "%s is not fully merged; use force to delete it", name)
			}
			ok, perr := o.prompt.Confirm(ctx, "Delete branch", fmt.Sprintf("Branch %s is not fully merged. Delete it anyway?", name), nil)
			if perr != nil {
				return perr
			}
			if !ok {
				return ErrCancelled
			}
		}
		if o.cfg.Branch.BackupEnabled() {
			backup, berr := o.backupBranch(ctx, main, name)
			if berr != nil {
				return fmt.Errorf("backup before delete: %w", berr)
			}
			res.Backup = backup
		}
		res.Forced = true
		return o.repo.DeleteBranch(ctx, main, name, true)
	})
	if err != nil {
		return res, err
	}
	o.logger.Info("branch deleted", "name", name, "forced", res.Forced, "backup", res.Backup)
	o.changed("delete-branch", main, "")
	if res.Backup != "" {
		o.info("Deleted " + name + "; backup bundle at " + res.Backup)
	}
	return res, nil
}

func (o *Orchestrator) backupBranch(ctx context.Context, main, name string) (string, error) {
	dir := o.backupDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "wtsync-backups")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	file := filepath.Join(dir, fmt.Sprintf("%s-%s.bundle", worktree.DirName(name), time.Now().UTC().Format("20060102T150405Z")))
	if err := o.repo.BundleCreate(ctx, main, file, "refs/heads/"+name); err != nil {
		return "", err
	}
	return file, nil
}
