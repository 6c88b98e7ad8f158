package repository

import (
	"database/sql"
	"testing"
)

// PostgresProductRepoはProductRepositoryインターフェースを満たすことを検証
func TestPostgresProductRepo_ImplementsInterface(t *testing.T) {
	var _ ProductRepository = (*PostgresProductRepo)(nil)
}

// NewPostgresProductRepoが正しく初期化されることを検証
func TestNewPostgresProductRepo_Initializes(t *testing.T) {
	repo := NewPostgresProductRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// nullString: 空文字列はNULL、非空はValidになることを検証
func TestNullString(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("空文字列はNULLになるべき")
	}
	if ns := nullString("value"); !ns.Valid || ns.String != "value" {
		t.Errorf("非空文字列はValidになるべき: %+v", ns)
	}
}

// nullStringValue: NULLは空文字列、Validは値を返すことを検証
func TestNullStringValue(t *testing.T) {
	if v := nullStringValue(sql.NullString{}); v != "" {
		t.Errorf("NULLは空文字列を返すべき: got %q", v)
	}
	if v := nullStringValue(sql.NullString{String: "x", Valid: true}); v != "x" {
		t.Errorf("Validは値を返すべき: got %q", v)
	}
}

// marshalJSONB: 空の値はNULL、非空はJSONバイト列になることを検証
func TestMarshalJSONB(t *testing.T) {
	v, err := marshalJSONB(map[string]string{}, true)
	if err != nil || v != nil {
		t.Errorf("空の値はNULLになるべき: v=%v err=%v", v, err)
	}

	v, err = marshalJSONB(map[string]string{"key": "value"}, false)
	if err != nil {
		t.Fatalf("エンコードに失敗しました: %v", err)
	}
	data, ok := v.([]byte)
	if !ok || string(data) != `{"key":"value"}` {
		t.Errorf("JSONバイト列が期待値と異なります: %s", data)
	}
}

// unmarshalJSONB: NULLは無変更、JSONバイト列はデコードされることを検証
func TestUnmarshalJSONB(t *testing.T) {
	var m map[string]string
	if err := unmarshalJSONB(nil, &m); err != nil {
		t.Fatalf("NULLの場合はエラーなしであるべき: %v", err)
	}
	if m != nil {
		t.Errorf("NULLの場合は無変更であるべき: %v", m)
	}

	if err := unmarshalJSONB([]byte(`{"a":"b"}`), &m); err != nil {
		t.Fatalf("デコードに失敗しました: %v", err)
	}
	if m["a"] != "b" {
		t.Errorf("デコード結果が期待値と異なります: %v", m)
	}
}
