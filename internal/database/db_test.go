package database

import (
	"path/filepath"
	"testing"

	"restoran-pos-terminal/internal/models"

	"github.com/stretchr/testify/require"
)

func TestEnsureBranchSeedsAndRenames(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)

	require.NoError(t, EnsureBranch(db, 1, "Merkez Şube"))
	// Tekrar açılışta env'deki ad değişmiş olabilir; satır çoğalmaz
	require.NoError(t, EnsureBranch(db, 1, "Kadıköy Şube"))

	var count int64
	require.NoError(t, db.Model(&models.Branch{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var branch models.Branch
	require.NoError(t, db.First(&branch, 1).Error)
	require.Equal(t, "Kadıköy Şube", branch.Name)
}
