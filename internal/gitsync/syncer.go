package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
	"curator/internal/textutil"
)

// Syncer commits knowledge-base changes into a git repository rooted at the
// knowledge base directory.
type Syncer struct {
	cfg    config.Git
	dir    string
	logger *slog.Logger
}

// New builds a syncer over the knowledge base directory.
func New(cfg *config.Config, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{cfg: cfg.Git, dir: cfg.Paths.KnowledgeBaseDir, logger: logger}
}

// Sync commits the item's generated entry. A clean worktree for the entry is
// a no-op, so re-running the phase never produces empty commits. It is the
// phase function for the sync phase.
func (s *Syncer) Sync(ctx context.Context, item *state.ItemState) error {
	if !s.cfg.Enabled {
		return nil
	}
	if item.ArtifactPath == "" {
		return services.Wrap(services.ErrValidation, "sync", "commit", "item has no generated entry", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entryDir := filepath.ToSlash(filepath.Dir(item.ArtifactPath))
	title := textutil.FirstNonEmpty(item.Title, item.ID)
	message := fmt.Sprintf("Add %s: %s", item.CategoryPath, title)
	committed, err := s.commitPath(ctx, entryDir, message)
	if err != nil {
		return err
	}
	if committed {
		s.logger.Info("entry committed",
			logging.String(logging.FieldItemID, item.ID),
			logging.String("entry", entryDir),
			logging.String(logging.FieldEventType, "entry_committed"),
		)
	}
	return nil
}

// CommitIndex commits the regenerated root index. Used after the phase loop.
func (s *Syncer) CommitIndex(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	_, err := s.commitPath(ctx, "README.md", "Update knowledge base index")
	return err
}

func (s *Syncer) commitPath(ctx context.Context, path, message string) (bool, error) {
	repo, err := s.openOrInit()
	if err != nil {
		return false, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "sync", "commit", "open worktree", err)
	}
	if err := worktree.AddWithOptions(&git.AddOptions{Path: path}); err != nil {
		return false, services.Wrap(services.ErrTransient, "sync", "commit", "stage "+path, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "sync", "commit", "read status", err)
	}
	if !hasStagedChanges(status) {
		return false, nil
	}

	_, err = worktree.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "sync", "commit", "create commit", err)
	}

	if s.cfg.Push {
		if err := s.push(ctx, repo); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (s *Syncer) push(ctx context.Context, repo *git.Repository) error {
	remote := strings.TrimSpace(s.cfg.RemoteName)
	if remote == "" {
		remote = "origin"
	}
	err := repo.PushContext(ctx, &git.PushOptions{RemoteName: remote})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrTransient, "sync", "push", "push to "+remote, err)
	}
	return nil
}

func (s *Syncer) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, services.Wrap(services.ErrTransient, "sync", "open", "open repository", err)
	}

	options := &git.PlainInitOptions{}
	if branch := strings.TrimSpace(s.cfg.Branch); branch != "" {
		options.InitOptions.DefaultBranch = plumbing.NewBranchReferenceName(branch)
	}
	repo, err = git.PlainInitWithOptions(s.dir, options)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "sync", "open", "init repository", err)
	}
	return repo, nil
}

func (s *Syncer) signature() *object.Signature {
	name := strings.TrimSpace(s.cfg.AuthorName)
	if name == "" {
		name = "curator"
	}
	email := strings.TrimSpace(s.cfg.AuthorEmail)
	if email == "" {
		email = "curator@localhost"
	}
	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

func hasStagedChanges(status git.Status) bool {
	for _, fileStatus := range status {
		switch fileStatus.Staging {
		case git.Unmodified, git.Untracked:
		default:
			return true
		}
	}
	return false
}
