package repository

import "testing"

// PostgresQueryHistoryRepoはQueryHistoryRepositoryインターフェースを満たすことを検証
func TestPostgresQueryHistoryRepo_ImplementsInterface(t *testing.T) {
	var _ QueryHistoryRepository = (*PostgresQueryHistoryRepo)(nil)
}

// PostgresCategoryRepoはCategoryRepositoryインターフェースを満たすことを検証
func TestPostgresCategoryRepo_ImplementsInterface(t *testing.T) {
	var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
}

// NewPostgresQueryHistoryRepoが正しく初期化されることを検証
func TestNewPostgresQueryHistoryRepo_Initializes(t *testing.T) {
	repo := NewPostgresQueryHistoryRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresCategoryRepoが正しく初期化されることを検証
func TestNewPostgresCategoryRepo_Initializes(t *testing.T) {
	repo := NewPostgresCategoryRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}
