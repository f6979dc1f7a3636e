package pathslug

import "testing"

import "github.com/stretchr/testify/require"

func TestRepoSlugGitRemote(t *testing.T) {
	require.Equal(t, "github-com-cwstudio-han-hooks", RepoSlug("git@github.com:cwstudio/han-hooks.git"))
	require.Equal(t, "github-com-cwstudio-han-hooks", RepoSlug("https://github.com/cwstudio/han-hooks.git"))
}

func TestRepoSlugNonGit(t *testing.T) {
	require.Equal(t, "home-dev-myproject", RepoSlug("/home/dev/myproject"))
}

func TestProjectSlug(t *testing.T) {
	require.Equal(t, "home-dev-myproject", ProjectSlug("/home/dev/myproject"))
}
