package store

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// indent は保存時のインデント
const indent = "    "

// FileStore は単一のJSONファイルにCollectionを保存するStore実装
//
// 読み込み・書き込みのたびにファイル全体を読み書きする。
// 同一プロセス内ではサーバー側でリクエストを直列化しているため安全だが、
// 複数プロセスから同じファイルを書き換えると後勝ちで更新が失われる。
type FileStore struct {
	path string
}

// NewFileStore は新しいFileStoreを作成する
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path は保存先のファイルパスを返す
func (s *FileStore) Path() string {
	return s.path
}

// Load はファイルからCollectionを読み込む
// ファイルが存在しない場合は空のCollectionを返す
func (s *FileStore) Load() (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("%w: %s の読み込みに失敗: %w", ErrStorageIO, s.path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return Collection{}, nil
	}

	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageCorrupt, s.path, err)
	}
	if c == nil {
		c = Collection{}
	}

	return c, nil
}

// Save はCollection全体を整形済みJSONとして書き込む
// 親ディレクトリが無ければ作成し、一時ファイルへ書き込んでからリネームする
func (s *FileStore) Save(c Collection) error {
	if c == nil {
		c = Collection{}
	}

	data, err := json.MarshalIndent(c, "", indent)
	if err != nil {
		return fmt.Errorf("%w: エンコードに失敗: %w", ErrStorageIO, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: ディレクトリ %s の作成に失敗: %w", ErrStorageIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: 一時ファイルの作成に失敗: %w", ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// リネーム済みなら何もしない
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: 書き込みに失敗: %w", ErrStorageIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: 同期に失敗: %w", ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: クローズに失敗: %w", ErrStorageIO, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: パーミッションの設定に失敗: %w", ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %s への置き換えに失敗: %w", ErrStorageIO, s.path, err)
	}

	return nil
}
