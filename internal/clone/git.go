package clone

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"
)

// fetchGit shallow-clones a remote submission into dest
func (c *Cloner) fetchGit(ctx context.Context, url, dest string) error {
	log.Info().Str("url", url).Msg("fetching project over git")

	cloneOpts := &git.CloneOptions{
		URL:   url,
		Depth: 1,
	}

	if c.Token != "" {
		cloneOpts.Auth = &http.BasicAuth{
			Username: "git", // Can be anything for token auth
			Password: c.Token,
		}
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	if err != nil {
		return fmt.Errorf("failed to clone: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	log.Debug().Str("commit", head.Hash().String()[:8]).Msg("fetch complete")

	return nil
}
